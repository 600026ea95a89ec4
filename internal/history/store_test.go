package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/journey_agent/internal/events"
	"github.com/dgnsrekt/journey_agent/internal/journey"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "runs"), 1)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestRecorderPersistsRun(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Begin("checkout", journey.ModeInline)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	running, err := s.Get(rec.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if running.Status != StatusRunning {
		t.Fatalf("Status = %s; want running", running.Status)
	}

	rec.Record(events.JourneyStart{Name: "checkout"})
	rec.Record(events.StepEnd{Name: "a", Status: events.StepSucceeded, DurationMS: 4, ActionTitles: []string{}})
	rec.Record(events.StepEnd{Name: "b", Status: events.StepFailed, ActionTitles: []string{}})
	rec.Record(events.StepEnd{Name: "c", Status: events.StepSkipped, ActionTitles: []string{}})
	rec.Record(events.JourneyEnd{Name: "checkout", Status: events.JourneyFailed, Error: &events.ErrorInfo{Message: "boom"}})

	meta, err := rec.Finish(false)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	want := StepCounts{Succeeded: 1, Failed: 1, Skipped: 1}
	if meta.Steps != want || meta.Status != StatusFailed || meta.Error != "boom" || meta.FinishedAt == nil {
		t.Fatalf("Finish() = %+v", meta)
	}

	got, err := s.Get(rec.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusFailed || got.Steps != want {
		t.Fatalf("Get() = %+v; want persisted totals", got)
	}

	evs, err := s.Events(rec.ID())
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(evs) != 5 {
		t.Fatalf("len(Events()) = %d; want 5", len(evs))
	}
	var firstData struct {
		Name string `json:"name"`
	}
	var raw struct {
		RunID string          `json:"run_id"`
		Event events.Kind     `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(evs[0], &raw); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if err := json.Unmarshal(raw.Data, &firstData); err != nil {
		t.Fatalf("decode event data: %v", err)
	}
	if raw.RunID != rec.ID() || raw.Event != events.KindJourneyStart || firstData.Name != "checkout" {
		t.Fatalf("first event = %s", evs[0])
	}

	if again, err := rec.Finish(true); err != nil || again.Status != StatusFailed {
		t.Fatalf("second Finish() = %+v, %v; want unchanged", again, err)
	}
}

func TestFinishWithoutResult(t *testing.T) {
	s := newTestStore(t)

	rec, _ := s.Begin("a", journey.ModeProject)
	meta, err := rec.Finish(false)
	if err != nil || meta.Status != StatusFailed {
		t.Fatalf("Finish(false) = %+v, %v; want failed", meta, err)
	}

	rec, _ = s.Begin("b", journey.ModeProject)
	rec.Record(events.JourneyStart{Name: "b"})
	meta, err = rec.Finish(true)
	if err != nil || meta.Status != StatusStopped {
		t.Fatalf("Finish(true) = %+v, %v; want stopped", meta, err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ids := []string{
		"11111111-1111-4111-8111-111111111111",
		"22222222-2222-4222-8222-222222222222",
		"33333333-3333-4333-8333-333333333333",
	}
	for i, id := range ids {
		if err := s.Save(RunMeta{ID: id, Journey: "j", StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.dir, "junk.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	metas, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("len(List()) = %d; want 3", len(metas))
	}
	if metas[0].ID != ids[2] || metas[2].ID != ids[0] {
		t.Fatalf("List() order = %s, %s, %s", metas[0].ID, metas[1].ID, metas[2].ID)
	}
}

func TestGetValidatesID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("../etc/passwd"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("Get(bad id) error = %v; want ErrInvalidID", err)
	}
	if _, err := s.Get("44444444-4444-4444-8444-444444444444"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v; want ErrNotFound", err)
	}
	if _, err := s.Events("44444444-4444-4444-8444-444444444444"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Events(missing) error = %v; want ErrNotFound", err)
	}
}

func TestDeleteRemovesRun(t *testing.T) {
	s := newTestStore(t)
	rec, _ := s.Begin("a", journey.ModeInline)
	rec.Record(events.JourneyStart{Name: "a"})
	if _, err := rec.Finish(false); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	if err := s.Delete(rec.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(rec.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Delete error = %v; want ErrNotFound", err)
	}
	if _, err := os.Stat(s.eventsPath(rec.ID())); !os.IsNotExist(err) {
		t.Fatalf("event log still present: %v", err)
	}
}

func TestEventLogRejectsAfterClose(t *testing.T) {
	l, err := OpenEventLog(filepath.Join(t.TempDir(), "x.jsonl"), 4, 1)
	if err != nil {
		t.Fatalf("OpenEventLog() error = %v", err)
	}
	if err := l.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := l.Write(map[string]int{"b": 2}); err == nil {
		t.Fatal("Write() after Close = nil; want error")
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if string(data) != "{\"a\":1}\n" {
		t.Fatalf("log = %q; want one record", data)
	}
}

func TestBeginRemovesMetaWhenEventLogFails(t *testing.T) {
	s := newTestStore(t)
	openErr := errors.New("disk full")
	orig := openEventLog
	openEventLog = func(string, int, int) (*EventLog, error) { return nil, openErr }
	t.Cleanup(func() { openEventLog = orig })

	if rec, err := s.Begin("a", journey.ModeInline); !errors.Is(err, openErr) || rec != nil {
		t.Fatalf("Begin() = %v, %v; want %v", rec, err, openErr)
	}
	runs, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("List() = %+v; want no runs after failed Begin", runs)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("store dir = %v, %v; want empty", entries, err)
	}
}

func TestOpenEventLogFailsOnUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taken.jsonl")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("os.Mkdir() error = %v", err)
	}
	if l, err := OpenEventLog(path, 4, 1); err == nil {
		_ = l.Close()
		t.Fatal("OpenEventLog() = nil; want error when the path is a directory")
	}
}
