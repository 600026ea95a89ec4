package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/dgnsrekt/journey_agent/internal/history"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Header:     make(http.Header),
	}
}

func TestRunFinishedPostsSummary(t *testing.T) {
	var receivedMethod, receivedPath, receivedTitle, receivedBody string
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			receivedMethod = r.Method
			receivedPath = r.URL.Path
			receivedTitle = r.Header.Get("Title")
			rawBody, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			receivedBody = string(rawBody)
			return okResponse(), nil
		}),
	}

	n := New("http://example.com/journeys", client)
	meta := history.RunMeta{
		Journey:    "checkout",
		Status:     history.StatusFailed,
		DurationMS: 1500,
		Steps:      history.StepCounts{Succeeded: 2, Failed: 1},
		Error:      "boom",
	}
	if err := n.RunFinished(context.Background(), meta); err != nil {
		t.Fatalf("RunFinished() error = %v", err)
	}

	if got, want := receivedMethod, http.MethodPost; got != want {
		t.Fatalf("method = %q; want %q", got, want)
	}
	if got, want := receivedPath, "/journeys"; got != want {
		t.Fatalf("path = %q; want %q", got, want)
	}
	if got, want := receivedTitle, "journey checkout failed"; got != want {
		t.Fatalf("title = %q; want %q", got, want)
	}
	if got, want := receivedBody, "checkout failed: 2 succeeded, 1 failed, 0 skipped in 1.5s: boom"; got != want {
		t.Fatalf("body = %q; want %q", got, want)
	}
}

func TestDisabledNotifierSendsNothing(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			t.Fatal("unexpected request")
			return nil, nil
		}),
	}
	n := New("  ", client)
	if n.Enabled() {
		t.Fatal("Enabled() = true; want false")
	}
	if err := n.RunFinished(context.Background(), history.RunMeta{}); err != nil {
		t.Fatalf("RunFinished() error = %v", err)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(context.Background(), client, "http://example.com/journeys", "", "x")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "ntfy notification failed") {
		t.Fatalf("error = %q; want to contain %q", err, "ntfy notification failed")
	}
}

func TestSendDisallowsMissingEndpoint(t *testing.T) {
	if err := Send(context.Background(), http.DefaultClient, "", "", "x"); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
