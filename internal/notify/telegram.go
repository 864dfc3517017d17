// Package notify provides notification sinks for alert and summary
// messages.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0x6d61/vulnprobe/internal/findings"
)

// DefaultTelegramAPI is the Telegram Bot API root.
const DefaultTelegramAPI = "https://api.telegram.org"

var _ findings.NotificationSink = (*Telegram)(nil)

// TelegramOptions configures a Telegram sink.
type TelegramOptions struct {
	// BaseURL overrides DefaultTelegramAPI.
	BaseURL string

	// ParseMode is sent as parse_mode (default "HTML"). In HTML mode the
	// message text is escaped, since alerts quote raw payloads and markup.
	ParseMode string

	// Timeout bounds each API call (default 10s).
	Timeout time.Duration
}

// Telegram posts messages to a chat through the Bot API sendMessage call.
type Telegram struct {
	token  string
	chatID string
	opts   TelegramOptions
	client *http.Client
}

// NewTelegram creates a Telegram sink for the given bot token and chat.
func NewTelegram(token, chatID string, opts TelegramOptions) *Telegram {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultTelegramAPI
	}
	if opts.ParseMode == "" {
		opts.ParseMode = "HTML"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Telegram{
		token:  token,
		chatID: chatID,
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts message to the configured chat.
func (t *Telegram) Send(ctx context.Context, message string) error {
	if strings.EqualFold(t.opts.ParseMode, "HTML") {
		message = html.EscapeString(message)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.opts.BaseURL, "/"), t.token)
	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {message},
		"parse_mode": {t.opts.ParseMode},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		// The token is part of the URL; keep it out of the error text.
		return fmt.Errorf("telegram: sending message: %w", redact(err, t.token))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("telegram: reading response: %w", err)
	}

	var tr telegramResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("telegram: status %d: decoding response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !tr.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, tr.Description)
	}
	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), secret, "***"), err: err}
}
