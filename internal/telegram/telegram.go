package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deusflow/MeterNews/internal/delivery"
	"github.com/deusflow/MeterNews/internal/digest"
	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/retry"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	// MaxMessageChars is the Telegram limit for one text message.
	MaxMessageChars = 4096
)

type Sender struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
	retry   retry.RetryConfig
}

func NewSender(token, chatID, baseURL string, client *http.Client, rc retry.RetryConfig) *Sender {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Sender{token: token, chatID: chatID, baseURL: baseURL, http: client, retry: rc}
}

// Send posts the digest to the chat, split into numbered parts when it is
// over the message limit. Parts are sent in order; a failed part stops the rest.
func (s *Sender) Send(ctx context.Context, message string) (delivery.Result, error) {
	if s.token == "" || s.chatID == "" {
		return delivery.Skipped("Telegram not configured"), delivery.ErrNotConfigured
	}

	chunks := digest.Chunks(message, MaxMessageChars)
	var res delivery.Result
	for i, chunk := range chunks {
		attempt := 0
		err := retry.WithRetry(ctx, s.retry, func() error {
			attempt++
			return s.sendMessageOnce(ctx, chunk)
		})
		if err != nil {
			logger.Error("Error sending to Telegram", "part", i+1, "parts", len(chunks), "error", err)
			res.Record(delivery.Detail{To: s.chatID, Chunk: i + 1, Error: err.Error()})
			return res, fmt.Errorf("telegram part %d/%d: %w", i+1, len(chunks), err)
		}
		logger.Info("Message sent to Telegram", "part", i+1, "parts", len(chunks), "try", attempt)
		res.Record(delivery.Detail{To: s.chatID, Chunk: i + 1})
	}
	return res, nil
}

// sendMessageOnce does one try to send message
func (s *Sender) sendMessageOnce(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)

	payload := map[string]interface{}{
		"chat_id":                  s.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("error make JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("Failed to close response body", "error", err)
		}
	}(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	default:
		return retry.Permanent(fmt.Errorf("telegram API error: status %d", resp.StatusCode))
	}
}
