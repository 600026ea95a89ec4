package events

import (
	"bytes"
	"encoding/json"
	"iter"
	"math"
	"strings"
)

// record mirrors the runner's JSON reporter output. Only the fields the
// classifier looks at are declared.
type record struct {
	Type    string `json:"type"`
	Journey *struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"journey"`
	Step *struct {
		Name     string `json:"name"`
		Status   string `json:"status"`
		Duration *struct {
			US *float64 `json:"us"`
		} `json:"duration"`
	} `json:"step"`
	Error *ErrorInfo `json:"error"`
}

// Classify turns one JSON record into a lifecycle event. Records that fail
// to parse or match none of the three shapes report false.
func Classify(raw []byte) (Event, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false
	}

	switch r.Type {
	case string(KindJourneyStart):
		if r.Journey == nil || r.Journey.Name == "" {
			return nil, false
		}
		return JourneyStart{Name: r.Journey.Name}, true

	case string(KindStepEnd):
		if r.Step == nil || r.Step.Duration == nil || r.Step.Duration.US == nil {
			return nil, false
		}
		status := StepStatus(r.Step.Status)
		switch status {
		case StepSucceeded, StepFailed, StepSkipped:
		default:
			return nil, false
		}
		return StepEnd{
			Name:       r.Step.Name,
			Status:     status,
			DurationMS: MicrosToMillis(*r.Step.Duration.US),
			Error:      r.Error,
		}, true

	case string(KindJourneyEnd):
		if r.Journey == nil {
			return nil, false
		}
		status := JourneyStatus(r.Journey.Status)
		if status != JourneySucceeded && status != JourneyFailed {
			return nil, false
		}
		return JourneyEnd{Name: r.Journey.Name, Status: status, Error: r.Error}, true
	}
	return nil, false
}

// MicrosToMillis converts a microsecond duration to milliseconds, rounding up.
func MicrosToMillis(us float64) int64 {
	return int64(math.Ceil(us / 1000))
}

// Decode yields the lifecycle events in a single chunk of newline-delimited
// JSON. Fragments that do not parse are dropped.
func Decode(chunk string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for line := range strings.SplitSeq(chunk, "\n") {
			ev, ok := Classify([]byte(line))
			if !ok {
				continue
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Stream decodes a chunked stream. An incomplete trailing line is held until
// the next chunk completes it, so records split across reads are not lost.
type Stream struct {
	pending []byte
}

// Write feeds one chunk and yields the events of every completed line.
func (s *Stream) Write(chunk []byte) iter.Seq[Event] {
	s.pending = append(s.pending, chunk...)
	cut := bytes.LastIndexByte(s.pending, '\n')
	if cut < 0 {
		return func(func(Event) bool) {}
	}
	complete := s.pending[:cut]
	s.pending = append([]byte(nil), s.pending[cut+1:]...)
	return Decode(string(complete))
}

// Flush yields the event held in an unterminated final line, if any.
func (s *Stream) Flush() iter.Seq[Event] {
	rest := s.pending
	s.pending = nil
	return Decode(string(rest))
}
