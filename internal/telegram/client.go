package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client 通过 Telegram Bot API 收发消息。
type Client struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewClient 构造 Bot API 客户端，chatID 为固定收件会话。
func NewClient(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Client{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "telegram").Logger(),
	}
}

// GetMe validates the bot credential and returns the bot account.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return User{}, err
	}
	return me, nil
}

// Send delivers text to the configured recipient chat.
func (c *Client) Send(ctx context.Context, text string) error {
	return c.send(ctx, c.chatID, text)
}

// SendMessage delivers text to an explicit chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, strconv.FormatInt(chatID, 10), text)
}

// GetUpdates polls inbound updates. Telegram returns only updates with an
// identifier at or above offset; pass zero on the first poll.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]int64{}
	if offset != 0 {
		payload["offset"] = offset
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		c.logger.Debug().Int("count", len(updates)).Msg("received updates")
	}
	return updates, nil
}

func (c *Client) send(ctx context.Context, chatID, text string) error {
	payload := map[string]string{
		"chat_id": chatID,
		"text":    text,
	}
	if err := c.call(ctx, "sendMessage", payload, nil); err != nil {
		return err
	}
	c.logger.Debug().Str("chat_id", chatID).Int("chars", len(text)).Msg("message sent")
	return nil
}

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// call 调用 Bot API 方法并解析响应。
func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope apiEnvelope
	decodeErr := json.Unmarshal(payloadBytes, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && envelope.Description != "" {
			return fmt.Errorf("telegram %s error (%d): %s", method, resp.StatusCode, envelope.Description)
		}
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", method, decodeErr)
	}
	if !envelope.OK {
		if envelope.Description != "" {
			return fmt.Errorf("telegram %s 返回 ok=false: %s", method, envelope.Description)
		}
		return fmt.Errorf("telegram %s 返回 ok=false", method)
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
