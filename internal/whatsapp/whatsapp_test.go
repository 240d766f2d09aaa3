package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/MeterNews/internal/delivery"
	"github.com/deusflow/MeterNews/internal/retry"
)

type sent struct {
	to, from, body string
}

func twilioServer(t *testing.T, failTo string) (*httptest.Server, *[]sent) {
	t.Helper()
	var mu sync.Mutex
	var got []sent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())

		if r.PostForm.Get("To") == failTo {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":21211,"message":"Invalid 'To' Phone Number"}`)
			return
		}
		mu.Lock()
		got = append(got, sent{to: r.PostForm.Get("To"), from: r.PostForm.Get("From"), body: r.PostForm.Get("Body")})
		n := len(got)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"sid":"SM%d"}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func config(baseURL string, recipients ...string) Config {
	return Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+14155238886",
		Recipients: recipients,
		MaxChars:   200,
		BaseURL:    baseURL,
	}
}

var fast = retry.RetryConfig{MaxAttempts: 2, Delay: time.Millisecond}

func TestSendSingleChunk(t *testing.T) {
	srv, got := twilioServer(t, "")
	s := NewSender(config(srv.URL, "+201000000000", "whatsapp:+971500000000"), srv.Client(), fast)

	res, err := s.Send(context.Background(), "short digest")
	require.NoError(t, err)

	assert.Equal(t, delivery.StatusOK, res.Status)
	assert.Equal(t, 2, res.Sent)
	require.Len(t, *got, 2)
	assert.Equal(t, sent{to: "whatsapp:+201000000000", from: "whatsapp:+14155238886", body: "short digest"}, (*got)[0])
	assert.Equal(t, "whatsapp:+971500000000", (*got)[1].to)
	assert.Equal(t, "SM1", res.Details[0].ID)
}

func TestSendChunksLongDigest(t *testing.T) {
	srv, got := twilioServer(t, "")
	s := NewSender(config(srv.URL, "+201000000000"), srv.Client(), fast)

	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("%d. Prepaid meter tender number %d", i+1, i))
	}
	res, err := s.Send(context.Background(), strings.Join(lines, "\n"))
	require.NoError(t, err)

	require.Greater(t, res.Sent, 1)
	for i, m := range *got {
		assert.True(t, strings.HasPrefix(m.body, fmt.Sprintf("(%d/%d)\n", i+1, res.Sent)), m.body)
		assert.LessOrEqual(t, len([]rune(m.body)), 200)
	}
}

func TestSendPartialFailure(t *testing.T) {
	srv, _ := twilioServer(t, "whatsapp:+000")
	s := NewSender(config(srv.URL, "+000", "+201000000000"), srv.Client(), fast)

	res, err := s.Send(context.Background(), "digest")
	require.NoError(t, err)

	assert.Equal(t, delivery.StatusPartialFail, res.Status)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Details[0].Error, "Invalid 'To' Phone Number")
}

func TestSendSkippedWhenNotConfigured(t *testing.T) {
	res, err := NewSender(Config{AccountSID: "AC123"}, nil, fast).Send(context.Background(), "x")
	assert.ErrorIs(t, err, delivery.ErrNotConfigured)
	assert.Equal(t, delivery.StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "WHATSAPP_PHONE_NUMBERS")

	res, err = NewSender(Config{Recipients: []string{"+1"}}, nil, fast).Send(context.Background(), "x")
	assert.ErrorIs(t, err, delivery.ErrNotConfigured)
	assert.Equal(t, "Twilio not configured: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_WHATSAPP_NUMBER", res.Reason)
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "whatsapp:+1", Address(" +1 "))
	assert.Equal(t, "whatsapp:+1", Address("whatsapp:+1"))
	assert.Equal(t, "", Address(" "))
}
