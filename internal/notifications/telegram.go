package notifications

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func levelEmoji(level string) string {
	switch level {
	case LevelWarning:
		return "⚠️"
	case LevelError:
		return "🚨"
	case LevelSuccess:
		return "✅"
	default:
		return "ℹ️"
	}
}

func (t *TelegramNotifier) SendAlert(level, message string) error {
	text := fmt.Sprintf("%s *Signal Bot*\n\n%s", levelEmoji(level), message)

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	resp, err := t.client.Post(apiURL, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
