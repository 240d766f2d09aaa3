// Package delivery holds what every digest sender reports back.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotConfigured is returned by senders missing credentials or recipients.
var ErrNotConfigured = errors.New("delivery channel not configured")

// Send outcomes.
const (
	StatusOK          = "ok"
	StatusPartialFail = "partial_fail"
	StatusSkipped     = "skipped"
)

// Detail records one attempted message.
type Detail struct {
	To    string `json:"to"`
	Chunk int    `json:"chunk"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Result summarizes a send across recipients and chunks.
type Result struct {
	Status  string   `json:"status"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Reason  string   `json:"reason,omitempty"`
	Details []Detail `json:"details,omitempty"`
}

// Skipped builds the result for a channel that did not try to send.
func Skipped(reason string) Result {
	return Result{Status: StatusSkipped, Reason: reason}
}

// Record appends one attempt and downgrades the status on failure.
func (r *Result) Record(d Detail) {
	if r.Status == "" {
		r.Status = StatusOK
	}
	r.Details = append(r.Details, d)
	if d.Error != "" {
		r.Failed++
		r.Status = StatusPartialFail
		return
	}
	r.Sent++
}

// Delivered reports whether at least one message went out.
func (r Result) Delivered() bool {
	return r.Sent > 0
}

// Writer prints the digest instead of sending it.
type Writer struct {
	Out io.Writer
}

func (w Writer) Send(_ context.Context, message string) (Result, error) {
	if _, err := fmt.Fprintln(w.Out, message); err != nil {
		return Result{Status: StatusPartialFail, Failed: 1}, fmt.Errorf("write digest: %w", err)
	}
	var r Result
	r.Record(Detail{To: "stdout", Chunk: 1})
	return r, nil
}
