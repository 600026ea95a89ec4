package events

// Kind tags a lifecycle event.
type Kind string

const (
	KindJourneyStart Kind = "journey/start"
	KindStepEnd      Kind = "step/end"
	KindJourneyEnd   Kind = "journey/end"
)

// StepStatus is the outcome the runner reports for a step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// JourneyStatus is the outcome the runner reports for a journey.
type JourneyStatus string

const (
	JourneySucceeded JourneyStatus = "succeeded"
	JourneyFailed    JourneyStatus = "failed"
)

// Event is one decoded lifecycle notification.
type Event interface {
	Kind() Kind
}

// ErrorInfo is the error object the runner attaches to failed steps and journeys.
type ErrorInfo struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// JourneyStart is emitted once the runner begins a journey.
type JourneyStart struct {
	Name string `json:"name"`
}

func (JourneyStart) Kind() Kind { return KindJourneyStart }

// StepEnd is emitted when a step finishes. ActionTitles is filled in by the
// orchestrator from the recorded journey.
type StepEnd struct {
	Name         string     `json:"name"`
	Status       StepStatus `json:"status"`
	DurationMS   int64      `json:"durationMs"`
	Error        *ErrorInfo `json:"error,omitempty"`
	ActionTitles []string   `json:"actionTitles"`
}

func (StepEnd) Kind() Kind { return KindStepEnd }

// JourneyEnd is the terminal event of a run.
type JourneyEnd struct {
	Name   string        `json:"name,omitempty"`
	Status JourneyStatus `json:"status"`
	Error  *ErrorInfo    `json:"error,omitempty"`
}

func (JourneyEnd) Kind() Kind { return KindJourneyEnd }

// Failed builds the synthetic terminal event delivered when a run breaks
// before the runner reports its own journey/end.
func Failed(name string, err error) JourneyEnd {
	end := JourneyEnd{Name: name, Status: JourneyFailed}
	if err != nil {
		end.Error = &ErrorInfo{Name: "Error", Message: err.Error()}
	}
	return end
}

// Message is the envelope pushed to UI subscribers.
type Message struct {
	RunID string `json:"run_id,omitempty"`
	Event Kind   `json:"event"`
	Data  Event  `json:"data"`
}

// NewMessage wraps e for delivery.
func NewMessage(runID string, e Event) Message {
	return Message{RunID: runID, Event: e.Kind(), Data: e}
}
