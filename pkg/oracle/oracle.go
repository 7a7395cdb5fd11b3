// Package oracle determines when an activity became enabled, correcting
// for concurrently-enabled branches that plain start-time ordering would
// miss. The shipped implementation is a directly-follows oracle over a
// per-activity concurrency relation.
package oracle

import (
	"sync"
	"time"

	"github.com/caseflow/caseflow/internal/model"
)

// DirectlyFollows resolves enablement times from a finished-events history:
// the probe activity became enabled when the latest non-concurrent activity
// before it finished. The concurrency relation is keyed by activity name
// and may be extended lazily by callers; all table access is synchronized
// so one oracle instance can be shared across case workers.
type DirectlyFollows struct {
	mu          sync.RWMutex
	concurrency map[string]map[string]struct{}
}

// NewDirectlyFollows creates an oracle with the given concurrency relation.
// The relation maps an activity name to the set of activity names that can
// run concurrently with it. A nil relation starts empty.
func NewDirectlyFollows(relation map[string][]string) *DirectlyFollows {
	o := &DirectlyFollows{concurrency: make(map[string]map[string]struct{})}
	for act, peers := range relation {
		set := make(map[string]struct{}, len(peers))
		for _, p := range peers {
			set[p] = struct{}{}
		}
		o.concurrency[act] = set
	}
	return o
}

// HasActivity reports whether the activity participates in the tracked
// concurrency relation.
func (o *DirectlyFollows) HasActivity(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.concurrency[name]
	return ok
}

// RegisterActivity inserts the activity with an empty concurrency set if
// it is not tracked yet. Callers rely on this lazy registration before
// querying activities the relation was not mined for.
func (o *DirectlyFollows) RegisterActivity(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.concurrency[name]; !ok {
		o.concurrency[name] = make(map[string]struct{})
	}
}

// EnabledSince returns the time the probe's activity became enabled given
// the finished-events history: the maximum end time among history events
// that finished at or before the probe start and are not concurrent with
// the probe activity. Zero when no qualifying event exists.
func (o *DirectlyFollows) EnabledSince(history []model.Event, probe model.Event) time.Time {
	o.mu.RLock()
	concurrent := o.concurrency[probe.Activity]
	// Snapshot membership under the lock; the set itself is never mutated
	// after insertion.
	o.mu.RUnlock()

	var enabled time.Time
	for _, ev := range history {
		if ev.End.IsZero() || ev.End.After(probe.Start) {
			continue
		}
		if _, ok := concurrent[ev.Activity]; ok {
			continue
		}
		if ev.End.After(enabled) {
			enabled = ev.End
		}
	}
	return enabled
}
