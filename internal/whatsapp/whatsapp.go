// Package whatsapp delivers the digest through the Twilio WhatsApp API.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/MeterNews/internal/delivery"
	"github.com/deusflow/MeterNews/internal/digest"
	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/retry"
)

const DefaultBaseURL = "https://api.twilio.com/2010-04-01"

type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	Recipients []string
	MaxChars   int
	BaseURL    string
}

type Sender struct {
	cfg   Config
	http  *http.Client
	retry retry.RetryConfig
}

func NewSender(cfg Config, client *http.Client, rc retry.RetryConfig) *Sender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 1400
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Sender{cfg: cfg, http: client, retry: rc}
}

// Address prefixes a phone number with the whatsapp: scheme.
func Address(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

func (s *Sender) missing() []string {
	var m []string
	if s.cfg.AccountSID == "" {
		m = append(m, "TWILIO_ACCOUNT_SID")
	}
	if s.cfg.AuthToken == "" {
		m = append(m, "TWILIO_AUTH_TOKEN")
	}
	if s.cfg.From == "" {
		m = append(m, "TWILIO_WHATSAPP_NUMBER")
	}
	return m
}

// Send posts every chunk of message to every recipient. A failed message
// marks the result partial_fail; the remaining messages are still sent.
func (s *Sender) Send(ctx context.Context, message string) (delivery.Result, error) {
	var recipients []string
	for _, r := range s.cfg.Recipients {
		if a := Address(r); a != "" {
			recipients = append(recipients, a)
		}
	}
	if len(recipients) == 0 {
		return delivery.Skipped("No WHATSAPP_PHONE_NUMBERS configured"), delivery.ErrNotConfigured
	}
	if m := s.missing(); len(m) > 0 {
		return delivery.Skipped("Twilio not configured: " + strings.Join(m, ", ")), delivery.ErrNotConfigured
	}

	from := Address(s.cfg.From)
	chunks := digest.Chunks(message, s.cfg.MaxChars)

	var res delivery.Result
	for _, to := range recipients {
		for i, chunk := range chunks {
			var sid string
			err := retry.WithRetry(ctx, s.retry, func() error {
				var err error
				sid, err = s.post(ctx, from, to, chunk)
				return err
			})
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				logger.Error("WhatsApp send failed", "to", to, "chunk", i+1, "error", err)
				res.Record(delivery.Detail{To: to, Chunk: i + 1, Error: err.Error()})
				continue
			}
			res.Record(delivery.Detail{To: to, Chunk: i + 1, ID: sid})
		}
	}
	logger.Info("WhatsApp delivery finished", "sent", res.Sent, "failed", res.Failed, "chunks", len(chunks), "recipients", len(recipients))
	return res, nil
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Sender) post(ctx context.Context, from, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.cfg.BaseURL, url.PathEscape(s.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", retry.Permanent(err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var tr twilioResponse
	_ = json.Unmarshal(raw, &tr)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("twilio: status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return "", retry.Permanent(fmt.Errorf("twilio: status %d: %d %s", resp.StatusCode, tr.Code, tr.Message))
	}
	return tr.SID, nil
}
