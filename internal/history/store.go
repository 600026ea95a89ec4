package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/journey_agent/internal/events"
	"github.com/dgnsrekt/journey_agent/internal/journey"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var (
	ErrInvalidID = errors.New("invalid run id")
	ErrNotFound  = errors.New("run not found")
)

const eventBufferSize = 1024

var openEventLog = OpenEventLog

// Status is the outcome recorded for a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// StepCounts tallies step/end outcomes.
type StepCounts struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// RunMeta describes one recorded run.
type RunMeta struct {
	ID         string       `json:"id"`
	Journey    string       `json:"journey"`
	Mode       journey.Mode `json:"mode"`
	Status     Status       `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	Steps      StepCounts   `json:"steps"`
	Error      string       `json:"error,omitempty"`
}

// Store keeps run metadata as JSON files and run events as JSONL logs.
type Store struct {
	dir       string
	maxSizeMB int
	mu        sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string, maxSizeMB int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("run store: mkdir %s: %w", dir, err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	return &Store{dir: dir, maxSizeMB: maxSizeMB}, nil
}

func validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (s *Store) metaPath(id string) string   { return filepath.Join(s.dir, id+".json") }
func (s *Store) eventsPath(id string) string { return filepath.Join(s.dir, id+".events.jsonl") }

// Save writes the metadata file for meta.ID.
func (s *Store) Save(meta RunMeta) error {
	if err := validateID(meta.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("run store: marshal meta: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.metaPath(meta.ID), data, 0o644); err != nil {
		return fmt.Errorf("run store: write meta: %w", err)
	}
	return nil
}

// Get reads run metadata by ID.
func (s *Store) Get(id string) (RunMeta, error) {
	if err := validateID(id); err != nil {
		return RunMeta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return RunMeta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return RunMeta{}, fmt.Errorf("run store: read meta: %w", err)
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return RunMeta{}, fmt.Errorf("run store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all runs sorted by start time (newest first).
func (s *Store) List() ([]RunMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("run store: glob: %w", err)
	}

	metas := make([]RunMeta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta RunMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].StartedAt.After(metas[j].StartedAt)
	})
	return metas, nil
}

// Events returns the recorded messages of a run, one raw JSON object each.
func (s *Store) Events(id string) ([]json.RawMessage, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.eventsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return []json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("run store: read events: %w", err)
	}

	out := []json.RawMessage{}
	for line := range bytes.SplitSeq(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		out = append(out, json.RawMessage(line))
	}
	return out, nil
}

// Delete removes a run's metadata and event log.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.eventsPath(id)); err != nil && !os.IsNotExist(err) {
		slog.Debug("run events cleanup failed", "id", id, "error", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		return fmt.Errorf("run store: delete meta: %w", err)
	}
	return nil
}

// Begin records a new running run and opens its event log.
func (s *Store) Begin(name string, mode journey.Mode) (*Recorder, error) {
	meta := RunMeta{
		ID:        uuid.NewString(),
		Journey:   name,
		Mode:      mode,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.Save(meta); err != nil {
		return nil, err
	}
	log, err := openEventLog(s.eventsPath(meta.ID), eventBufferSize, s.maxSizeMB)
	if err != nil {
		s.mu.Lock()
		if rmErr := os.Remove(s.metaPath(meta.ID)); rmErr != nil {
			slog.Warn("unable to remove run meta", "run_id", meta.ID, "error", rmErr)
		}
		s.mu.Unlock()
		return nil, err
	}
	return &Recorder{store: s, meta: meta, log: log}, nil
}

// Recorder accumulates the events of one run.
type Recorder struct {
	store *Store
	log   *EventLog

	mu       sync.Mutex
	meta     RunMeta
	finished bool
}

// ID returns the run id.
func (r *Recorder) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta.ID
}

// Meta returns a snapshot of the run metadata.
func (r *Recorder) Meta() RunMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

// Record logs e and folds it into the run totals.
func (r *Recorder) Record(e events.Event) {
	r.mu.Lock()
	switch ev := e.(type) {
	case events.StepEnd:
		switch ev.Status {
		case events.StepSucceeded:
			r.meta.Steps.Succeeded++
		case events.StepFailed:
			r.meta.Steps.Failed++
		case events.StepSkipped:
			r.meta.Steps.Skipped++
		}
	case events.JourneyEnd:
		if ev.Status == events.JourneySucceeded {
			r.meta.Status = StatusSucceeded
		} else {
			r.meta.Status = StatusFailed
		}
		if ev.Error != nil {
			r.meta.Error = ev.Error.Message
		}
	}
	id := r.meta.ID
	r.mu.Unlock()

	if err := r.log.Write(events.NewMessage(id, e)); err != nil {
		slog.Debug("run event not recorded", "id", id, "error", err)
	}
}

// Finish stamps the run and persists it. stopped marks a run the caller
// terminated and overrides whatever result was recorded.
func (r *Recorder) Finish(stopped bool) (RunMeta, error) {
	r.mu.Lock()
	if r.finished {
		meta := r.meta
		r.mu.Unlock()
		return meta, nil
	}
	r.finished = true
	now := time.Now().UTC()
	r.meta.FinishedAt = &now
	r.meta.DurationMS = now.Sub(r.meta.StartedAt).Milliseconds()
	if stopped {
		r.meta.Status = StatusStopped
	} else if r.meta.Status == StatusRunning {
		r.meta.Status = StatusFailed
	}
	meta := r.meta
	r.mu.Unlock()

	logErr := r.log.Close()
	if err := r.store.Save(meta); err != nil {
		return meta, err
	}
	if logErr != nil {
		return meta, fmt.Errorf("run store: close event log: %w", logErr)
	}
	return meta, nil
}
