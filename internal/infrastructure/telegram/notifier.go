package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"PageWatcher/internal/config"
	"PageWatcher/internal/domain"
	"PageWatcher/internal/ports"
)

const maxErrorBody = 64 << 10

// Notifier delivers events to Telegram chats via the bot API. The owner ID is
// the chat ID.
type Notifier struct {
	endpoint string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewNotifier registers the bot token. A nil client gets one bounded by cfg.Timeout.
func NewNotifier(cfg config.NotificationConfig, client *http.Client) *Notifier {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.Telegram.APIURL, "/")
	return &Notifier{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", base, cfg.Telegram.BotToken),
		client:   client,
	}
}

// Notify posts an HTML message describing event to the owner's chat.
func (n *Notifier) Notify(ctx context.Context, ownerID string, event domain.Event) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                ownerID,
		Text:                  Render(event),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode == http.StatusOK && body.OK {
		return nil
	}

	if recipientGone(resp.StatusCode, body) {
		return fmt.Errorf("telegram chat %s: %w: %s", ownerID, domain.ErrRecipientGone, body.Description)
	}
	if body.Description != "" {
		return fmt.Errorf("telegram error: %s: %s", resp.Status, body.Description)
	}
	return fmt.Errorf("telegram error: %s", resp.Status)
}

func recipientGone(status int, body apiResponse) bool {
	if status == http.StatusForbidden || body.ErrorCode == http.StatusForbidden {
		return true
	}
	desc := strings.ToLower(body.Description)
	for _, marker := range []string{"chat was deleted", "bot was blocked", "chat not found"} {
		if strings.Contains(desc, marker) {
			return true
		}
	}
	return false
}

// Render formats an event as Telegram HTML.
func Render(event domain.Event) string {
	u := "<b>" + html.EscapeString(event.URL) + "</b>"
	switch event.Kind {
	case domain.EventTrackingStarted:
		return "🔍 Started monitoring: " + u
	case domain.EventChanged:
		return "⚡ Update on " + u
	case domain.EventCheckFailed:
		return "❌ Error while checking " + u + ": " + html.EscapeString(event.Reason)
	case domain.EventNoChange:
		return "✅ No changes on " + u
	default:
		return html.EscapeString(string(event.Kind)) + ": " + u
	}
}
