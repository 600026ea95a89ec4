package relay

import (
	"net/url"
	"strings"

	"github.com/dgnsrekt/journey_agent/internal/events"
)

// filter selects messages by kind (?events=step/end,journey/end) and run
// (?run_id=...). Empty fields accept everything.
type filter struct {
	kinds map[events.Kind]bool
	runID string
}

func parseFilter(q url.Values) filter {
	f := filter{runID: strings.TrimSpace(q.Get("run_id"))}
	if raw := q.Get("events"); raw != "" {
		f.kinds = make(map[events.Kind]bool)
		for k := range strings.SplitSeq(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				f.kinds[events.Kind(k)] = true
			}
		}
	}
	return f
}

func (f filter) accept(msg events.Message) bool {
	if f.kinds != nil && !f.kinds[msg.Event] {
		return false
	}
	if f.runID != "" && f.runID != msg.RunID {
		return false
	}
	return true
}
