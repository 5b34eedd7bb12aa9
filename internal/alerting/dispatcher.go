package alerting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pool-range-alerts/internal/limits"
	"pool-range-alerts/internal/telegram"
)

// RangeSource 提供当前生效的价格区间。
type RangeSource interface {
	Get() limits.Range
}

// Sender 把告警文本推送给固定的接收人。
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Dispatcher 将汇率与区间比较, 每次越界只发送一条告警,
// 直到汇率回到区间内或区间被指令更新为止。
type Dispatcher struct {
	ranges RangeSource
	sender Sender
	symbol string
	logger zerolog.Logger
	active bool
}

// NewDispatcher 构造告警调度器。
func NewDispatcher(ranges RangeSource, sender Sender, symbol string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		ranges: ranges,
		sender: sender,
		symbol: symbol,
		logger: logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

// Evaluate compares the rate against the current range and sends at most
// one alert per out-of-range episode. A failed send leaves the episode
// unmarked so the next evaluation retries it.
func (d *Dispatcher) Evaluate(ctx context.Context, rate decimal.Decimal) error {
	bounds := d.ranges.Get()

	if bounds.Contains(rate) {
		if d.active {
			d.active = false
			d.logger.Info().
				Str("rate", rate.String()).
				Str("range", bounds.String()).
				Msg("rate back within limits")
		} else {
			d.logger.Debug().
				Str("rate", rate.String()).
				Str("range", bounds.String()).
				Msg("rate within limits")
		}
		return nil
	}

	if d.active {
		d.logger.Debug().
			Str("rate", rate.String()).
			Str("range", bounds.String()).
			Msg("alert already sent for this episode")
		return nil
	}

	text := fmt.Sprintf("ALERT! %s token out of limits: %s", d.symbol, rate)
	if err := d.sender.Send(ctx, text); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}

	d.active = true
	d.logger.Info().
		Str("rate", rate.String()).
		Str("range", bounds.String()).
		Msg("告警已发送 (Telegram)")
	return nil
}

// Reset clears the episode flag so the next out-of-range rate alerts
// again. Call it after the limits change.
func (d *Dispatcher) Reset() {
	if d.active {
		d.logger.Debug().Msg("alert state cleared after limits change")
	}
	d.active = false
}

var (
	_ RangeSource = (*limits.Store)(nil)
	_ Sender      = (*telegram.Client)(nil)
)
