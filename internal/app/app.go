package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pool-range-alerts/internal/alerting"
	"pool-range-alerts/internal/command"
	"pool-range-alerts/internal/config"
	"pool-range-alerts/internal/limits"
	"pool-range-alerts/internal/quote"
	"pool-range-alerts/internal/scheduler"
	"pool-range-alerts/internal/service"
	"pool-range-alerts/internal/telegram"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newReader() *quote.Reader {
	return quote.NewReader(quote.Options{
		RPCURL:        a.Config.Chain.RPCURL,
		ChainID:       a.Config.Chain.ID,
		RouterAddress: a.Config.Chain.RouterAddress,
		BaseAddress:   a.Config.Pair.BaseAddress,
		QuoteAddress:  a.Config.Pair.QuoteAddress,
		BaseSymbol:    a.Config.Pair.BaseSymbol,
		Timeout:       a.Config.Chain.RequestTimeout,
	}, a.Logger)
}

func (a *App) newTelegram() *telegram.Client {
	cfg := a.Config.Telegram
	return telegram.NewClient(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
}

func (a *App) openLimits() (*limits.Store, error) {
	fallback := limits.Range{
		Lower: decimal.NewFromFloat(a.Config.Limits.Lower),
		Upper: decimal.NewFromFloat(a.Config.Limits.Upper),
	}
	return limits.Open(a.Config.Limits.Path, fallback, a.Logger)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reader := a.newReader()
	info, err := reader.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify chain access: %w", err)
	}
	a.Logger.Info().
		Str("base", info.BaseSymbol).
		Str("quote", info.QuoteSymbol).
		Msg("pair verified")

	tg := a.newTelegram()
	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("verify bot credential: %w", err)
	}
	a.Logger.Info().Str("bot", me.Username).Msg("telegram bot verified")

	chatID, err := a.Config.Telegram.NumericChatID()
	if err != nil {
		return err
	}

	store, err := a.openLimits()
	if err != nil {
		return err
	}
	defer store.Close()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	listener := command.NewListener(tg, store, a.Config.Command.Keyword, chatID, a.Logger)
	dispatcher := alerting.NewDispatcher(store, tg, info.BaseSymbol, a.Logger)
	svc := service.New(sched, listener, reader, dispatcher, a.Logger)

	a.announceStart(ctx, tg, store.Get())

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// announceStart tells the recipient the monitor is running and how to set
// limits. Delivery failure only logs; the loop still starts.
func (a *App) announceStart(ctx context.Context, tg *telegram.Client, bounds limits.Range) {
	keyword := a.Config.Command.Keyword
	text := fmt.Sprintf(
		"Monitor started. Please send me a command in the format:\n"+
			"%s <lower_limit> <upper_limit>\n"+
			"to set or update the limits.\n\n"+
			"Example: %s 0.5 2.0\n\n"+
			"Current limits: %s",
		keyword, keyword, bounds,
	)
	if err := tg.Send(ctx, text); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to send startup announcement")
	}
}
