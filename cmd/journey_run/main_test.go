package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/dgnsrekt/journey_agent/internal/debugger"
	"github.com/dgnsrekt/journey_agent/internal/journey"
	"github.com/dgnsrekt/journey_agent/internal/orchestrator"
	"github.com/dgnsrekt/journey_agent/internal/runner"
	"github.com/dgnsrekt/journey_agent/internal/session"
)

// TestHelperProcess is not a real test. It stands in for the journey runner.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	_, _ = io.Copy(io.Discard, os.Stdin)
	fmt.Println(`{"type":"journey/start","journey":{"name":"J"}}`)
	fmt.Println(`{"type":"journey/end","journey":{"name":"J","status":"` + os.Getenv("HELPER_STATUS") + `"}}`)
}

func helperOrchestrator(t *testing.T, status string) *orchestrator.Orchestrator {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("HELPER_STATUS", status)
	return orchestrator.New(orchestrator.Config{
		Command:     os.Args[0],
		CommandArgs: []string{"-test.run=TestHelperProcess", "--"},
	}, runner.NewSupervisor())
}

func sampleJourney() journey.Journey {
	return journey.Journey{
		Name: "J",
		Mode: journey.ModeInline,
		Code: "step('a', () => {});",
		Steps: []journey.Step{{Actions: []journey.Action{
			{Title: "open", Action: journey.ActionDetail{Name: "navigate", URL: "https://example.com"}},
			{Title: "buy", Action: journey.ActionDetail{Name: "click", Selector: "#buy"}},
		}}, {Actions: []journey.Action{
			{Title: "pay", Action: journey.ActionDetail{Name: "click", Selector: "#pay"}},
		}}},
	}
}

func TestRunOnceWritesMessages(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{"succeeded", 0},
		{"failed", 1},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			var out bytes.Buffer
			if got := runOnce(context.Background(), helperOrchestrator(t, tt.status), sampleJourney(), &out); got != tt.want {
				t.Fatalf("runOnce() = %d; want %d", got, tt.want)
			}

			var kinds []string
			runIDs := map[string]bool{}
			scanner := bufio.NewScanner(&out)
			for scanner.Scan() {
				var msg struct {
					RunID string `json:"run_id"`
					Event string `json:"event"`
				}
				if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
					t.Fatalf("output line %q: %v", scanner.Text(), err)
				}
				kinds = append(kinds, msg.Event)
				runIDs[msg.RunID] = true
			}
			if strings.Join(kinds, ",") != "journey/start,journey/end" || len(runIDs) != 1 {
				t.Fatalf("messages = %v, run ids = %v", kinds, runIDs)
			}
		})
	}
}

type recordingPage struct{ ran []string }

func (p *recordingPage) Run(_ context.Context, a journey.Action) error {
	p.ran = append(p.ran, a.Title)
	return nil
}
func (p *recordingPage) BringToFront(context.Context) error { return nil }

type stubBrowser struct {
	page *recordingPage
	lost chan struct{}
}

func (b *stubBrowser) Page() session.Page    { return b.page }
func (b *stubBrowser) Lost() <-chan struct{} { return b.lost }
func (b *stubBrowser) Close() error          { return nil }

type stubLauncher struct{ page *recordingPage }

func (l stubLauncher) Launch(context.Context) (session.Browser, error) {
	return &stubBrowser{page: l.page, lost: make(chan struct{})}, nil
}

func TestDebugLoopTogglesBreakpoints(t *testing.T) {
	page := &recordingPage{}
	stepper := debugger.NewStepper(session.NewManager(stubLauncher{page: page}))
	bps := journey.NewBreakpoints(journey.Key{Step: 0, Action: 1})

	in := strings.NewReader("l\nb 1:0\n\nb bogus\nc\n")
	var out, prompt bytes.Buffer
	code := debugLoop(context.Background(), stepper, sampleJourney().Steps, bps, in, &out, &prompt)
	if code != 0 {
		t.Fatalf("debugLoop() = %d; want 0 (prompt: %s)", code, prompt.String())
	}
	if got := strings.Join(page.ran, ","); got != "open,buy,pay" {
		t.Fatalf("executed = %s; want open,buy,pay", got)
	}

	var results []debugger.Result
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r debugger.Result
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		results = append(results, r)
	}
	if len(results) != 3 || results[0].PausedIndex != "0:1" || results[1].PausedIndex != "1:0" || !results[2].Finished {
		t.Fatalf("results = %+v; want pause 0:1, pause 1:0, finished", results)
	}
	for _, want := range []string{"paused before 0:1 (buy: click)", "breakpoints: 0:1", "breakpoint 1:0 set"} {
		if !strings.Contains(prompt.String(), want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt.String())
		}
	}
}

func TestDebugLoopQuit(t *testing.T) {
	page := &recordingPage{}
	stepper := debugger.NewStepper(session.NewManager(stubLauncher{page: page}))
	bps := journey.NewBreakpoints(journey.Key{Step: 0, Action: 0})

	var out, prompt bytes.Buffer
	if code := debugLoop(context.Background(), stepper, sampleJourney().Steps, bps, strings.NewReader("q\n"), &out, &prompt); code != 1 {
		t.Fatalf("debugLoop() = %d; want 1", code)
	}
	if len(page.ran) != 0 {
		t.Fatalf("executed = %v; want nothing", page.ran)
	}
	if stepper.State() != debugger.StateIdle {
		t.Fatalf("State() = %s; want idle after quit", stepper.State())
	}
}
