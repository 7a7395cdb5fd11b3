// Package model defines core data structures for CaseFlow.
package model

import (
	"sort"
	"time"
)

// Event represents a single recorded activity execution from an event log.
// End and Enabled are nullable: a zero End means the activity is still
// running at observation time, a zero Enabled means the log did not record
// when the activity became enabled.
type Event struct {
	// CaseID identifies the process instance (trace).
	CaseID string

	// Activity is the activity label as it appears in the log.
	Activity string

	// Resource is the actor/resource performing the activity.
	Resource string

	// Enabled is when the activity became enabled, if recorded.
	Enabled time.Time

	// Start is when the activity execution began.
	Start time.Time

	// End is when the activity execution finished. Zero while ongoing.
	End time.Time
}

// Ongoing reports whether the event has started but not finished.
func (e Event) Ongoing() bool {
	return e.End.IsZero()
}

// HasEnabled reports whether the log recorded an enablement time.
func (e Event) HasEnabled() bool {
	return !e.Enabled.IsZero()
}

// Log is a loaded event log slice.
type Log struct {
	Events []Event
}

// Cases groups the log by case id. Events within each case are ordered by
// start time; ties keep the log's original row order. The returned case ids
// are sorted for deterministic iteration.
func (l *Log) Cases() (ids []string, groups map[string][]Event) {
	groups = make(map[string][]Event)
	for _, ev := range l.Events {
		groups[ev.CaseID] = append(groups[ev.CaseID], ev)
	}
	ids = make([]string, 0, len(groups))
	for id, evs := range groups {
		ids = append(ids, id)
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].Start.Before(evs[j].Start)
		})
	}
	sort.Strings(ids)
	return ids, groups
}

// Len returns the number of events in the log.
func (l *Log) Len() int { return len(l.Events) }
