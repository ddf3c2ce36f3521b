package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender delivers alerts through the Bot API sendMessage call.
type TelegramSender struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender for the bot token and chat.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiURL: telegramAPI,
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts title in bold followed by message using Markdown parse mode.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n%s", title, message),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := strings.TrimRight(t.apiURL, "/") + "/bot" + t.token + "/sendMessage"
	if err := postJSON(ctx, t.client, url, body); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name returns "telegram".
func (t *TelegramSender) Name() string {
	return "telegram"
}
