// Package state reconstructs the runtime state of in-flight cases: given a
// process model, a reachability graph, a trace matcher and a concurrency
// oracle, it derives per case which flows hold tokens, which activities are
// running, and which activities and gateways are enabled and since when.
package state

import (
	"time"

	"github.com/caseflow/caseflow/internal/model"
	"github.com/caseflow/caseflow/pkg/reachability"
)

// OngoingActivity is a started-but-unfinished activity of a case. TaskID is
// empty when the log label does not resolve to a model activity; such
// records still surface here but take no part in marking intersection.
type OngoingActivity struct {
	TaskID   string
	Start    time.Time
	Resource string
	Enabled  time.Time // zero = unknown
}

// EnabledElement is a model element (activity or gateway) reachable from
// the case's current marking that has not yet started or fired.
type EnabledElement struct {
	ID      string
	Enabled time.Time // zero = unknown
}

// ControlFlow is the token view of a case: flows holding tokens and the
// ids of currently ongoing activities.
type ControlFlow struct {
	Flows      []string
	Activities []string
}

// CaseState is the reconstructed snapshot of one case. It is immutable
// once emitted.
type CaseState struct {
	ControlFlow       ControlFlow
	Ongoing           []OngoingActivity
	EnabledActivities []EnabledElement
	EnabledGateways   []EnabledElement
}

// TraceMatcher maps a trace prefix (first element: the trace-start
// sentinel) to the best-matching marking. A nil result is a miss.
type TraceMatcher interface {
	BestMarkingFor(trace []string) reachability.Marking
}

// ConcurrencyOracle resolves the enablement time of an activity against a
// finished-events history. The capability pair HasActivity/RegisterActivity
// makes the lazily-extended concurrency table an explicit contract.
type ConcurrencyOracle interface {
	EnabledSince(history []model.Event, probe model.Event) time.Time
	HasActivity(name string) bool
	RegisterActivity(name string)
}

// Result is the outcome of one reconstruction run.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string

	// States maps case id to its reconstructed state. Cases whose enabled
	// gateways include an end event are absent.
	States map[string]*CaseState

	// CasesSeen counts the cases in the input log.
	CasesSeen int

	// CasesDropped counts cases excluded because an enabled gateway
	// resolved to an end event (the case is effectively complete).
	CasesDropped int
}
