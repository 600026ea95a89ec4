package journey

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key identifies an action by its position: step index then action index.
type Key struct {
	Step   int
	Action int
}

// String renders the key in the "step:action" form used by the UI.
func (k Key) String() string {
	return strconv.Itoa(k.Step) + ":" + strconv.Itoa(k.Action)
}

// Less reports whether k sorts strictly before other in execution order.
func (k Key) Less(other Key) bool {
	if k.Step != other.Step {
		return k.Step < other.Step
	}
	return k.Action < other.Action
}

// ParseKey parses a "step:action" key. Both parts must be non-negative integers.
func ParseKey(s string) (Key, error) {
	stepPart, actionPart, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Key{}, fmt.Errorf("breakpoint key %q: missing ':'", s)
	}
	step, err := strconv.Atoi(stepPart)
	if err != nil || step < 0 {
		return Key{}, fmt.Errorf("breakpoint key %q: invalid step index", s)
	}
	action, err := strconv.Atoi(actionPart)
	if err != nil || action < 0 {
		return Key{}, fmt.Errorf("breakpoint key %q: invalid action index", s)
	}
	return Key{Step: step, Action: action}, nil
}

// Breakpoints is the set of keys at which the debug stepper pauses.
type Breakpoints map[Key]struct{}

// NewBreakpoints builds a set from keys.
func NewBreakpoints(keys ...Key) Breakpoints {
	b := make(Breakpoints, len(keys))
	for _, k := range keys {
		b[k] = struct{}{}
	}
	return b
}

// ParseBreakpoints builds a set from "step:action" strings. Any malformed
// entry fails the whole set.
func ParseBreakpoints(raw []string) (Breakpoints, error) {
	b := make(Breakpoints, len(raw))
	for _, s := range raw {
		k, err := ParseKey(s)
		if err != nil {
			return nil, err
		}
		b[k] = struct{}{}
	}
	return b, nil
}

// Has reports whether k is in the set. A nil set has no breakpoints.
func (b Breakpoints) Has(k Key) bool {
	_, ok := b[k]
	return ok
}

// Strings returns the keys in execution order.
func (b Breakpoints) Strings() []string {
	keys := make([]Key, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
