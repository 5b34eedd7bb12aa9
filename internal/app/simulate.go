package app

import (
	"context"

	"github.com/shopspring/decimal"

	"pool-range-alerts/internal/alerting"
	"pool-range-alerts/internal/limits"
)

// SimulateAlert 以给定汇率走一遍告警流程，便于验证 Telegram 配置。
// The configured default limits stand in for the persisted range.
func (a *App) SimulateAlert(ctx context.Context, rate decimal.Decimal) error {
	bounds, err := limits.NewRange(
		decimal.NewFromFloat(a.Config.Limits.Lower),
		decimal.NewFromFloat(a.Config.Limits.Upper),
	)
	if err != nil {
		return err
	}

	dispatcher := alerting.NewDispatcher(staticRangeSource{bounds}, a.newTelegram(), a.Config.Pair.BaseSymbol, a.Logger)
	return dispatcher.Evaluate(ctx, rate)
}

type staticRangeSource struct {
	bounds limits.Range
}

func (s staticRangeSource) Get() limits.Range { return s.bounds }

var _ alerting.RangeSource = staticRangeSource{}
