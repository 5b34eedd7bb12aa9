package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pool-range-alerts/internal/alerting"
	"pool-range-alerts/internal/command"
	"pool-range-alerts/internal/quote"
	"pool-range-alerts/internal/scheduler"
)

// Poller drains pending chat commands.
type Poller interface {
	Poll(ctx context.Context) (updated bool, err error)
}

// Evaluator compares a rate against the stored range.
type Evaluator interface {
	Evaluate(ctx context.Context, rate decimal.Decimal) error
	Reset()
}

// Service orchestrates command polling, rate reads, and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	commands  Poller
	rates     quote.RateFetcher
	alerts    Evaluator
	logger    zerolog.Logger
}

// New constructs the monitoring service.
func New(sched *scheduler.Scheduler, commands Poller, rates quote.RateFetcher, alerts Evaluator, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		commands:  commands,
		rates:     rates,
		alerts:    alerts,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Run begins the poll loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Tick)
}

// Tick 执行单次轮询: 先处理指令, 再读取汇率并评估告警。
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	updated, err := s.commands.Poll(ctx)
	if err != nil {
		// Command channel trouble must not stop rate monitoring.
		s.logger.Error().Err(err).Msg("command poll failed")
	}
	if updated {
		s.alerts.Reset()
	}

	rate, err := s.rates.FetchRate(ctx)
	if err != nil {
		return fmt.Errorf("read rate: %w", err)
	}

	s.logger.Info().Time("at", at).Str("rate", rate.String()).Msg("rate sampled")

	if err := s.alerts.Evaluate(ctx, rate); err != nil {
		return fmt.Errorf("evaluate rate: %w", err)
	}
	return nil
}

var (
	_ Poller    = (*command.Listener)(nil)
	_ Evaluator = (*alerting.Dispatcher)(nil)
)
