package quote

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateFetcher reads the current pool exchange rate, quoted as quote tokens
// per one whole base token.
type RateFetcher interface {
	FetchRate(ctx context.Context) (decimal.Decimal, error)
}
