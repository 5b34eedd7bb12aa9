package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pool-range-alerts/internal/limits"
	"pool-range-alerts/internal/telegram"
)

const invalidLimitsReply = "Invalid limits: lower bound must be positive and not exceed the upper bound."

// Gateway covers the chat operations the listener needs.
type Gateway interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// RangeWriter updates the stored rate range.
type RangeWriter interface {
	Set(lower, upper decimal.Decimal) error
}

// Listener polls the chat for limit commands of the form
// "<keyword> <lower> <upper>" and applies them to the range store.
type Listener struct {
	gateway Gateway
	store   RangeWriter
	pattern *regexp.Regexp
	chatID  int64
	offset  int64
	logger  zerolog.Logger
}

// NewListener builds a listener bound to one authorised chat.
func NewListener(gateway Gateway, store RangeWriter, keyword string, chatID int64, logger zerolog.Logger) *Listener {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(keyword) + `\s+([0-9.]+)\s+([0-9.]+)$`)
	return &Listener{
		gateway: gateway,
		store:   store,
		pattern: pattern,
		chatID:  chatID,
		logger:  logger.With().Str("component", "command_listener").Logger(),
	}
}

// Poll fetches unseen updates and processes any limit commands among them.
// It reports whether at least one update changed the stored range. The
// poll offset only advances past updates that were fully handled, so a
// failure mid-batch leaves the remainder for the next poll.
func (l *Listener) Poll(ctx context.Context) (bool, error) {
	updates, err := l.gateway.GetUpdates(ctx, l.offset)
	if err != nil {
		return false, fmt.Errorf("fetch updates: %w", err)
	}

	changed := false
	for _, update := range updates {
		applied, err := l.handle(ctx, update)
		if err != nil {
			return changed, err
		}
		if update.UpdateID >= l.offset {
			l.offset = update.UpdateID + 1
		}
		if applied {
			changed = true
		}
	}
	return changed, nil
}

func (l *Listener) handle(ctx context.Context, update telegram.Update) (bool, error) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return false, nil
	}
	if msg.Chat.ID != l.chatID {
		l.logger.Debug().Int64("chat_id", msg.Chat.ID).Msg("ignoring message from unknown chat")
		return false, nil
	}

	match := l.pattern.FindStringSubmatch(strings.TrimSpace(msg.Text))
	if match == nil {
		l.logger.Debug().Str("text", msg.Text).Msg("ignoring non-command message")
		return false, nil
	}

	lower, err := decimal.NewFromString(match[1])
	if err != nil {
		l.logger.Debug().Str("text", msg.Text).Msg("ignoring command with malformed lower bound")
		return false, nil
	}
	upper, err := decimal.NewFromString(match[2])
	if err != nil {
		l.logger.Debug().Str("text", msg.Text).Msg("ignoring command with malformed upper bound")
		return false, nil
	}

	if err := l.store.Set(lower, upper); err != nil {
		if errors.Is(err, limits.ErrInvalidRange) {
			l.logger.Info().Str("text", msg.Text).Msg("rejected invalid limits command")
			l.reply(ctx, msg.Chat.ID, invalidLimitsReply)
			return false, nil
		}
		return false, fmt.Errorf("update limits: %w", err)
	}

	l.logger.Info().
		Str("lower", lower.String()).
		Str("upper", upper.String()).
		Msg("limits updated by command")

	confirmation := fmt.Sprintf("Limits updated:\nLower limit = %s\nUpper limit = %s", lower, upper)
	l.reply(ctx, msg.Chat.ID, confirmation)
	return true, nil
}

func (l *Listener) reply(ctx context.Context, chatID int64, text string) {
	if err := l.gateway.SendMessage(ctx, chatID, text); err != nil {
		l.logger.Error().Err(err).Msg("failed to send reply")
	}
}

var (
	_ Gateway     = (*telegram.Client)(nil)
	_ RangeWriter = (*limits.Store)(nil)
)
