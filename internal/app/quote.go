package app

import (
	"context"
	"fmt"
	"os"
)

// Quote reads the pool rate once and prints it.
func (a *App) Quote(ctx context.Context) error {
	reader := a.newReader()

	info, err := reader.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify chain access: %w", err)
	}

	rate, err := reader.FetchRate(ctx)
	if err != nil {
		return fmt.Errorf("read rate: %w", err)
	}

	fmt.Fprintf(os.Stdout, "1 %s = %s %s\n", info.BaseSymbol, rate, info.QuoteSymbol)
	return nil
}
