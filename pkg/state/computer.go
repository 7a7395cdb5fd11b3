package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/caseflow/caseflow/internal/model"
	"github.com/caseflow/caseflow/pkg/bpmn"
	"github.com/caseflow/caseflow/pkg/ngram"
	"github.com/caseflow/caseflow/pkg/reachability"
)

// Computer drives the per-case reconstruction. Cases are independent; the
// only shared mutable resource is the oracle's concurrency table, which the
// oracle itself keeps safe for concurrent workers.
type Computer struct {
	model   *bpmn.Model
	graph   *reachability.Graph
	matcher TraceMatcher
	oracle  ConcurrencyOracle

	workers  int
	progress func(done, total int)
}

// Option configures a Computer.
type Option func(*Computer)

// WithWorkers sets the number of parallel case workers. Values below 1
// mean sequential processing.
func WithWorkers(n int) Option {
	return func(c *Computer) { c.workers = n }
}

// WithProgress installs a callback invoked after each case completes.
func WithProgress(fn func(done, total int)) Option {
	return func(c *Computer) { c.progress = fn }
}

// NewComputer assembles a state computer from its collaborators.
func NewComputer(m *bpmn.Model, g *reachability.Graph, matcher TraceMatcher, oracle ConcurrencyOracle, opts ...Option) *Computer {
	c := &Computer{model: m, graph: g, matcher: matcher, oracle: oracle, workers: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComputeCaseStates reconstructs the state of every case in the log. Cases
// whose enabled gateways include an end event are dropped from the result
// (counted in CasesDropped); everything else is emitted. The only error
// source is context cancellation.
func (c *Computer) ComputeCaseStates(ctx context.Context, log *model.Log) (*Result, error) {
	ctx, span := otel.Tracer("caseflow/state").Start(ctx, "state.compute_case_states")
	defer span.End()

	ids, groups := log.Cases()
	res := &Result{
		RunID:     uuid.New().String(),
		States:    make(map[string]*CaseState, len(ids)),
		CasesSeen: len(ids),
	}

	var mu sync.Mutex
	done := 0

	eg, ctx := errgroup.WithContext(ctx)
	if c.workers > 1 {
		eg.SetLimit(c.workers)
	} else {
		eg.SetLimit(1)
	}

	for _, caseID := range ids {
		caseID := caseID
		events := groups[caseID]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cs, ok := c.computeCase(events)

			mu.Lock()
			if ok {
				res.States[caseID] = cs
			} else {
				res.CasesDropped++
			}
			done++
			if c.progress != nil {
				c.progress(done, len(ids))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("run.id", res.RunID),
		attribute.Int("cases.seen", res.CasesSeen),
		attribute.Int("cases.dropped", res.CasesDropped),
	)
	return res, nil
}

// computeCase reconstructs one case from its start-time-ordered events.
// The second return is false when the case must be dropped because an
// enabled gateway is an end event.
func (c *Computer) computeCase(events []model.Event) (*CaseState, bool) {
	var ongoing, finished []model.Event
	for _, ev := range events {
		if ev.Ongoing() {
			ongoing = append(ongoing, ev)
		} else {
			finished = append(finished, ev)
		}
	}

	ongoingActs, ongoingIDs := c.ongoingRecords(ongoing)
	stateFlows := c.matchedFlows(events, ongoingActs)

	flows := stateFlows.Sorted()
	enabledActivities := c.enabledActivities(flows, events, finished)
	enabledGateways, endEventEnabled := c.enabledGateways(flows, ongoingIDs, finished)
	if endEventEnabled {
		return nil, false
	}

	return &CaseState{
		ControlFlow: ControlFlow{
			Flows:      flows,
			Activities: sortedKeys(ongoingIDs),
		},
		Ongoing:           ongoingActs,
		EnabledActivities: enabledActivities,
		EnabledGateways:   enabledGateways,
	}, true
}

// ongoingRecords builds the ongoing-activity records and the set of
// resolved task ids. Unresolvable labels keep their record with an empty
// TaskID. The enablement time is taken from the log only when the oracle
// tracks the activity.
func (c *Computer) ongoingRecords(ongoing []model.Event) ([]OngoingActivity, map[string]struct{}) {
	records := make([]OngoingActivity, 0, len(ongoing))
	ids := make(map[string]struct{})

	for _, ev := range ongoing {
		taskID, resolved := c.model.TaskIDByName(ev.Activity)
		rec := OngoingActivity{
			Start:    ev.Start,
			Resource: ev.Resource,
		}
		if resolved {
			rec.TaskID = taskID
			ids[taskID] = struct{}{}
			if !ev.Start.IsZero() && c.oracle.HasActivity(ev.Activity) {
				rec.Enabled = ev.Enabled
			}
		}
		records = append(records, rec)
	}
	return records, ids
}

// matchedFlows queries the trace matcher for the case's marking and
// corrects it for ongoing activities: the matcher assumes every listed
// activity completed, so for each resolved ongoing activity the marking is
// intersected with the source marking of the matching incoming edge (the
// state before that activity fired). A matcher miss yields an empty set.
func (c *Computer) matchedFlows(events []model.Event, ongoingActs []OngoingActivity) reachability.Marking {
	trace := make([]string, 0, len(events)+1)
	trace = append(trace, ngram.TraceStart)
	for _, ev := range events {
		trace = append(trace, ev.Activity)
	}

	marking := c.matcher.BestMarkingFor(trace)
	if len(marking) == 0 {
		return reachability.Marking{}
	}
	stateFlows := marking.Clone()

	node, ok := c.graph.NodeByMarking(marking)
	if !ok {
		return stateFlows
	}
	for _, act := range ongoingActs {
		if act.TaskID == "" {
			continue
		}
		// Incoming edges are ordered by edge id, so the first match is a
		// stable pick even when several edges carry the same activity.
		for _, edgeID := range c.graph.IncomingEdges(node) {
			edge := c.graph.Edge(edgeID)
			if edge.Activity == act.TaskID {
				stateFlows = stateFlows.Intersect(c.graph.MarkingOf(edge.Source))
				break
			}
		}
	}
	return stateFlows
}

// enabledActivities derives the enabled-activity records for every flow
// whose target is a model activity. With no finished event to anchor on,
// the case's earliest start time is authoritative; otherwise the oracle is
// probed one second past the latest finished end time, registering the
// activity in the concurrency table first when it is unknown.
func (c *Computer) enabledActivities(flows []string, events, finished []model.Event) []EnabledElement {
	var out []EnabledElement
	for _, flowID := range flows {
		target, ok := c.model.FlowTarget(flowID)
		if !ok || !c.model.IsActivity(target) {
			continue
		}
		name, _ := c.model.ActivityName(target)

		var enabled time.Time
		if len(finished) == 0 {
			enabled = earliestStart(events)
		} else {
			if !c.oracle.HasActivity(name) {
				c.oracle.RegisterActivity(name)
			}
			probeTime := latestEnd(finished).Add(time.Second)
			probe := model.Event{Activity: name, Start: probeTime, End: probeTime}
			enabled = c.oracle.EnabledSince(finished, probe)
		}
		out = append(out, EnabledElement{ID: target, Enabled: enabled})
	}
	return out
}

// enabledGateways derives the enabled-gateway records for every flow whose
// target is not a model activity. A gateway with an upstream task still
// ongoing is suppressed: that task can still feed it, so it is not truly
// enabled yet. The second return reports whether any enabled gateway is an
// end event, which drops the whole case.
func (c *Computer) enabledGateways(flows []string, ongoingIDs map[string]struct{}, finished []model.Event) ([]EnabledElement, bool) {
	var out []EnabledElement
	endEventEnabled := false

	for _, flowID := range flows {
		target, ok := c.model.FlowTarget(flowID)
		if !ok || target == "" || c.model.IsActivity(target) {
			continue
		}
		upstream := c.model.UpstreamTasks(target)
		if intersects(upstream, ongoingIDs) {
			continue
		}
		enabled := c.gatewayEnabledTime(target, finished)
		if enabled.IsZero() {
			continue
		}
		out = append(out, EnabledElement{ID: target, Enabled: enabled})
		if c.model.IsEndEvent(target) {
			endEventEnabled = true
		}
	}
	return out, endEventEnabled
}

// gatewayEnabledTime resolves when a gateway became enabled: the latest end
// time among finished events of its upstream tasks, falling back to the
// latest end time across all finished events when the gateway has no
// upstream tasks or none of them finished yet. Zero when the case has no
// finished event at all.
func (c *Computer) gatewayEnabledTime(gatewayID string, finished []model.Event) time.Time {
	global := latestEnd(finished)

	upstream := c.model.UpstreamTasks(gatewayID)
	if len(upstream) == 0 {
		return global
	}

	names := make(map[string]struct{}, len(upstream))
	for taskID := range upstream {
		if name, ok := c.model.ActivityName(taskID); ok {
			names[name] = struct{}{}
		}
	}

	var max time.Time
	for _, ev := range finished {
		if _, ok := names[ev.Activity]; !ok {
			continue
		}
		if ev.End.After(max) {
			max = ev.End
		}
	}
	if max.IsZero() {
		return global
	}
	return max
}

func earliestStart(events []model.Event) time.Time {
	var min time.Time
	for _, ev := range events {
		if min.IsZero() || ev.Start.Before(min) {
			min = ev.Start
		}
	}
	return min
}

func latestEnd(events []model.Event) time.Time {
	var max time.Time
	for _, ev := range events {
		if ev.End.After(max) {
			max = ev.End
		}
	}
	return max
}

func intersects(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
