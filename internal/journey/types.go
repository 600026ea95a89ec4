package journey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how the runner receives the journey script.
type Mode string

const (
	// ModeInline delivers the script over the runner's standard input.
	ModeInline Mode = "inline"
	// ModeProject writes the script to the scratch directory and passes its path.
	ModeProject Mode = "project"
)

var ErrInvalidJourney = errors.New("invalid journey")

// Signal is a navigation or popup signal recorded alongside an action.
type Signal struct {
	Name    string `json:"name" yaml:"name"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	IsAsync bool   `json:"isAsync,omitempty" yaml:"isAsync,omitempty"`
}

// ActionDetail holds the recorder's parameters for a single browser operation.
type ActionDetail struct {
	Name       string   `json:"name" yaml:"name"`
	URL        string   `json:"url,omitempty" yaml:"url,omitempty"`
	Selector   string   `json:"selector,omitempty" yaml:"selector,omitempty"`
	Text       string   `json:"text,omitempty" yaml:"text,omitempty"`
	Key        string   `json:"key,omitempty" yaml:"key,omitempty"`
	Value      string   `json:"value,omitempty" yaml:"value,omitempty"`
	Options    []string `json:"options,omitempty" yaml:"options,omitempty"`
	Files      []string `json:"files,omitempty" yaml:"files,omitempty"`
	Button     string   `json:"button,omitempty" yaml:"button,omitempty"`
	Modifiers  int      `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	ClickCount int      `json:"clickCount,omitempty" yaml:"clickCount,omitempty"`
	Signals    []Signal `json:"signals,omitempty" yaml:"signals,omitempty"`
}

// Action is one recorded browser operation in the context of its frame.
type Action struct {
	PageAlias   string       `json:"pageAlias,omitempty" yaml:"pageAlias,omitempty"`
	IsMainFrame bool         `json:"isMainFrame,omitempty" yaml:"isMainFrame,omitempty"`
	FrameURL    string       `json:"frameUrl,omitempty" yaml:"frameUrl,omitempty"`
	Committed   bool         `json:"committed,omitempty" yaml:"committed,omitempty"`
	Title       string       `json:"title,omitempty" yaml:"title,omitempty"`
	Action      ActionDetail `json:"action" yaml:"action"`
}

// DisplayTitle returns the action title, or "Action N" (1-based) when the
// recorder did not supply one.
func (a Action) DisplayTitle(index int) string {
	if strings.TrimSpace(a.Title) != "" {
		return a.Title
	}
	return "Action " + strconv.Itoa(index+1)
}

// Step is a named, ordered group of actions.
type Step struct {
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Actions []Action `json:"actions" yaml:"actions"`
}

// ActionTitles returns the display titles of every action in order.
func (s Step) ActionTitles() []string {
	titles := make([]string, 0, len(s.Actions))
	for i, a := range s.Actions {
		titles = append(titles, a.DisplayTitle(i))
	}
	return titles
}

// MatchName is the name a runner reports for this step: the first action's
// title, or the step name when the first action has none.
func (s Step) MatchName() string {
	if len(s.Actions) > 0 && strings.TrimSpace(s.Actions[0].Title) != "" {
		return s.Actions[0].Title
	}
	return s.Name
}

// Journey is a recorded scenario plus the source generated for it.
type Journey struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []Step `json:"steps" yaml:"steps"`
	Code  string `json:"code" yaml:"code"`
	Mode  Mode   `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Validate checks the structural invariants the executor relies on.
func (j Journey) Validate() error {
	switch j.Mode {
	case ModeInline, ModeProject:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidJourney, j.Mode)
	}
	return ValidateSteps(j.Steps)
}

// ValidateSteps checks that every step has at least one named action.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidJourney)
	}
	for i, s := range steps {
		if len(s.Actions) == 0 {
			return fmt.Errorf("%w: step %d has no actions", ErrInvalidJourney, i)
		}
		for k, a := range s.Actions {
			if strings.TrimSpace(a.Action.Name) == "" {
				return fmt.Errorf("%w: action %d:%d has no name", ErrInvalidJourney, i, k)
			}
		}
	}
	return nil
}

// FindStep returns the step whose MatchName equals name.
func (j Journey) FindStep(name string) (Step, bool) {
	return FindStep(j.Steps, name)
}

// FindStep returns the first step in steps whose MatchName equals name.
func FindStep(steps []Step, name string) (Step, bool) {
	if name == "" {
		return Step{}, false
	}
	for _, s := range steps {
		if len(s.Actions) == 0 {
			continue
		}
		if s.MatchName() == name {
			return s, true
		}
	}
	return Step{}, false
}

// ActionCount returns the total number of actions across all steps.
func (j Journey) ActionCount() int {
	n := 0
	for _, s := range j.Steps {
		n += len(s.Actions)
	}
	return n
}
