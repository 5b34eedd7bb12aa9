package alerting

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pool-range-alerts/internal/limits"
)

type rangeStub struct {
	bounds limits.Range
}

func (r rangeStub) Get() limits.Range { return r.bounds }

type senderStub struct {
	texts []string
	err   error
}

func (s *senderStub) Send(ctx context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, text)
	return nil
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestDispatcher(t *testing.T, lower, upper string) (*Dispatcher, *senderStub) {
	t.Helper()
	bounds, err := limits.NewRange(decimal.RequireFromString(lower), decimal.RequireFromString(upper))
	if err != nil {
		t.Fatalf("构造区间失败: %v", err)
	}
	sender := &senderStub{}
	return NewDispatcher(rangeStub{bounds}, sender, "MPS", noopLogger()), sender
}

func TestDispatcherQuietWithinRange(t *testing.T) {
	dispatcher, sender := newTestDispatcher(t, "3.58", "3.73")

	if err := dispatcher.Evaluate(context.Background(), decimal.RequireFromString("3.6")); err != nil {
		t.Fatalf("区间内评估不应报错: %v", err)
	}
	if len(sender.texts) != 0 {
		t.Fatalf("区间内不应发送告警: %#v", sender.texts)
	}
}

func TestDispatcherAlertsOncePerEpisode(t *testing.T) {
	dispatcher, sender := newTestDispatcher(t, "3.58", "3.73")
	rate := decimal.RequireFromString("3.8")

	for i := 0; i < 3; i++ {
		if err := dispatcher.Evaluate(context.Background(), rate); err != nil {
			t.Fatalf("第 %d 次评估不应报错: %v", i+1, err)
		}
	}

	if len(sender.texts) != 1 {
		t.Fatalf("一次越界只应发送一条告警, 实际 %d", len(sender.texts))
	}
	want := "ALERT! MPS token out of limits: 3.8"
	if sender.texts[0] != want {
		t.Fatalf("告警文本不正确: %s", sender.texts[0])
	}
}

func TestDispatcherAlertsAgainAfterReentry(t *testing.T) {
	dispatcher, sender := newTestDispatcher(t, "3.58", "3.73")
	ctx := context.Background()

	if err := dispatcher.Evaluate(ctx, decimal.RequireFromString("3.8")); err != nil {
		t.Fatalf("越界评估不应报错: %v", err)
	}
	if err := dispatcher.Evaluate(ctx, decimal.RequireFromString("3.6")); err != nil {
		t.Fatalf("回归区间评估不应报错: %v", err)
	}
	if err := dispatcher.Evaluate(ctx, decimal.RequireFromString("3.5")); err != nil {
		t.Fatalf("再次越界评估不应报错: %v", err)
	}

	if len(sender.texts) != 2 {
		t.Fatalf("回归后再次越界应再告警, 实际 %d 条", len(sender.texts))
	}
	if sender.texts[1] != "ALERT! MPS token out of limits: 3.5" {
		t.Fatalf("下穿告警文本不正确: %s", sender.texts[1])
	}
}

func TestDispatcherRetriesAfterSendFailure(t *testing.T) {
	dispatcher, sender := newTestDispatcher(t, "3.58", "3.73")
	ctx := context.Background()
	rate := decimal.RequireFromString("3.8")

	sender.err = errors.New("telegram down")
	if err := dispatcher.Evaluate(ctx, rate); err == nil {
		t.Fatal("发送失败应返回错误")
	}

	sender.err = nil
	if err := dispatcher.Evaluate(ctx, rate); err != nil {
		t.Fatalf("重试评估不应报错: %v", err)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("重试后应补发告警, 实际 %d 条", len(sender.texts))
	}

	// 补发成功后本轮越界不再重复。
	if err := dispatcher.Evaluate(ctx, rate); err != nil {
		t.Fatalf("评估不应报错: %v", err)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("补发成功后不应重复告警, 实际 %d 条", len(sender.texts))
	}
}

func TestDispatcherResetReopensEpisode(t *testing.T) {
	dispatcher, sender := newTestDispatcher(t, "3.58", "3.73")
	ctx := context.Background()
	rate := decimal.RequireFromString("3.8")

	if err := dispatcher.Evaluate(ctx, rate); err != nil {
		t.Fatalf("越界评估不应报错: %v", err)
	}
	dispatcher.Reset()
	if err := dispatcher.Evaluate(ctx, rate); err != nil {
		t.Fatalf("重置后评估不应报错: %v", err)
	}

	if len(sender.texts) != 2 {
		t.Fatalf("重置后仍越界应再次告警, 实际 %d 条", len(sender.texts))
	}
}

func TestDispatcherBoundaryInclusive(t *testing.T) {
	dispatcher, sender := newTestDispatcher(t, "3.58", "3.73")
	ctx := context.Background()

	if err := dispatcher.Evaluate(ctx, decimal.RequireFromString("3.58")); err != nil {
		t.Fatalf("下界评估不应报错: %v", err)
	}
	if err := dispatcher.Evaluate(ctx, decimal.RequireFromString("3.73")); err != nil {
		t.Fatalf("上界评估不应报错: %v", err)
	}
	if len(sender.texts) != 0 {
		t.Fatalf("闭区间边界不应告警: %#v", sender.texts)
	}
}
