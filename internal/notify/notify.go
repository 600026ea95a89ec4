// Package notify posts run summaries to an ntfy-style HTTP endpoint.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgnsrekt/journey_agent/internal/history"
)

// Notifier sends a message when a run finishes. A zero endpoint disables it.
type Notifier struct {
	endpoint string
	client   *http.Client
}

// New returns a Notifier posting to endpoint. A nil client uses a client
// with a 10s timeout.
func New(endpoint string, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Notifier{endpoint: strings.TrimSpace(endpoint), client: client}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.endpoint != ""
}

// RunFinished posts the summary of a finished run.
func (n *Notifier) RunFinished(ctx context.Context, meta history.RunMeta) error {
	if !n.Enabled() {
		return nil
	}
	title := fmt.Sprintf("journey %s %s", meta.Journey, meta.Status)
	return Send(ctx, n.client, n.endpoint, title, Summary(meta))
}

// Summary renders a one-line description of a run.
func Summary(meta history.RunMeta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d succeeded, %d failed, %d skipped",
		meta.Journey, meta.Status, meta.Steps.Succeeded, meta.Steps.Failed, meta.Steps.Skipped)
	if meta.DurationMS > 0 {
		fmt.Fprintf(&b, " in %s", (time.Duration(meta.DurationMS) * time.Millisecond).String())
	}
	if meta.Error != "" {
		b.WriteString(": ")
		b.WriteString(meta.Error)
	}
	return b.String()
}

// Send posts message to endpoint. title is sent as the ntfy Title header
// when non-empty.
func Send(ctx context.Context, client *http.Client, endpoint, title, message string) error {
	if endpoint == "" {
		return errors.New("notify: endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
