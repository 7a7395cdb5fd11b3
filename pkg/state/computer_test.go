package state

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/caseflow/caseflow/internal/model"
	"github.com/caseflow/caseflow/pkg/bpmn"
	"github.com/caseflow/caseflow/pkg/ngram"
	"github.com/caseflow/caseflow/pkg/oracle"
	"github.com/caseflow/caseflow/pkg/reachability"
)

func at(sec int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second)
}

// stubMatcher returns a fixed marking for any trace.
type stubMatcher struct {
	marking reachability.Marking
}

func (s stubMatcher) BestMarkingFor([]string) reachability.Marking { return s.marking }

func mustModel(t *testing.T, doc string) *bpmn.Model {
	t.Helper()
	m, err := bpmn.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("model parse failed: %v", err)
	}
	return m
}

// seqModel is start -f0-> A -f1-> B -f2-> end.
const seqModel = `<definitions>
  <startEvent id="start"/>
  <task id="A" name="Approve"/>
  <task id="B" name="Bill"/>
  <endEvent id="end"/>
  <sequenceFlow id="f0" sourceRef="start" targetRef="A"/>
  <sequenceFlow id="f1" sourceRef="A" targetRef="B"/>
  <sequenceFlow id="f2" sourceRef="B" targetRef="end"/>
</definitions>`

// seqGraph mirrors seqModel: {f0} -A-> {f1} -B-> {f2}.
func seqGraph() *reachability.Graph {
	g := reachability.NewGraph()
	n0 := g.AddNode(reachability.NewMarking("f0"))
	n1 := g.AddNode(reachability.NewMarking("f1"))
	n2 := g.AddNode(reachability.NewMarking("f2"))
	g.AddEdge(n0, n1, "A")
	g.AddEdge(n1, n2, "B")
	g.Initial = n0
	return g
}

// parallelModel is a split gateway feeding A and B, joined by gwJ:
// gw0 -fA-> A -f1-> gwJ, gw0 -fB-> B -f2-> gwJ, gwJ -f3-> end.
const parallelModel = `<definitions>
  <startEvent id="start"/>
  <task id="A" name="Approve"/>
  <task id="B" name="Bill"/>
  <endEvent id="end"/>
  <sequenceFlow id="f0" sourceRef="start" targetRef="gw0"/>
  <sequenceFlow id="fA" sourceRef="gw0" targetRef="A"/>
  <sequenceFlow id="fB" sourceRef="gw0" targetRef="B"/>
  <sequenceFlow id="f1" sourceRef="A" targetRef="gwJ"/>
  <sequenceFlow id="f2" sourceRef="B" targetRef="gwJ"/>
  <sequenceFlow id="f3" sourceRef="gwJ" targetRef="end"/>
</definitions>`

func parallelGraph() *reachability.Graph {
	g := reachability.NewGraph()
	n0 := g.AddNode(reachability.NewMarking("fA", "fB"))
	n1 := g.AddNode(reachability.NewMarking("f1", "fB"))
	n2 := g.AddNode(reachability.NewMarking("fA", "f2"))
	n3 := g.AddNode(reachability.NewMarking("f1", "f2"))
	g.AddEdge(n0, n1, "A")
	g.AddEdge(n0, n2, "B")
	g.AddEdge(n1, n3, "B")
	g.AddEdge(n2, n3, "A")
	g.Initial = n0
	return g
}

func nameMatcher(m *bpmn.Model, g *reachability.Graph) TraceMatcher {
	return ngram.BuildWithLabels(g, 3, func(id string) string {
		if name, ok := m.ActivityName(id); ok {
			return name
		}
		return id
	})
}

func compute(t *testing.T, c *Computer, events []model.Event) *Result {
	t.Helper()
	res, err := c.ComputeCaseStates(context.Background(), &model.Log{Events: events})
	if err != nil {
		t.Fatalf("ComputeCaseStates failed: %v", err)
	}
	return res
}

func TestSequentialCase_OngoingActivity(t *testing.T) {
	m := mustModel(t, seqModel)
	g := seqGraph()
	orc := oracle.NewDirectlyFollows(map[string][]string{"Bill": {}})
	c := NewComputer(m, g, nameMatcher(m, g), orc)

	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(10)},
		{CaseID: "c1", Activity: "Bill", Start: at(12), Enabled: at(10)},
	})

	cs, ok := res.States["c1"]
	if !ok {
		t.Fatal("case c1 missing from result")
	}

	if got := cs.ControlFlow.Activities; !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("ControlFlow.Activities = %v, want [B]", got)
	}
	if len(cs.Ongoing) != 1 {
		t.Fatalf("Ongoing = %v, want one record", cs.Ongoing)
	}
	oa := cs.Ongoing[0]
	if oa.TaskID != "B" || !oa.Start.Equal(at(12)) {
		t.Errorf("ongoing record = %+v, want task B started at t=12", oa)
	}
	if !oa.Enabled.Equal(at(10)) {
		t.Errorf("ongoing enabled = %v, want t=10 (taken from log, activity tracked)", oa.Enabled)
	}
	// The matcher marking {f2} reflects B as completed; intersecting with
	// the pre-B marking {f1} leaves no token in this sequential model.
	if len(cs.ControlFlow.Flows) != 0 {
		t.Errorf("ControlFlow.Flows = %v, want empty after intersection", cs.ControlFlow.Flows)
	}
	if len(cs.EnabledGateways) != 0 {
		t.Errorf("EnabledGateways = %v, want none", cs.EnabledGateways)
	}
}

func TestEndEventExclusion(t *testing.T) {
	m := mustModel(t, seqModel)
	g := seqGraph()
	c := NewComputer(m, g, nameMatcher(m, g), oracle.NewDirectlyFollows(nil))

	// Both activities finished: the marking {f2} targets the end event,
	// which is reachable with no upstream task ongoing, so the case is
	// complete from the model's perspective and must be dropped.
	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(10)},
		{CaseID: "c1", Activity: "Bill", Start: at(12), End: at(20)},
	})

	if _, ok := res.States["c1"]; ok {
		t.Error("case with enabled end event must be absent from result")
	}
	if res.CasesSeen != 1 || res.CasesDropped != 1 {
		t.Errorf("counts = seen %d dropped %d, want 1/1", res.CasesSeen, res.CasesDropped)
	}
}

func TestGatewaySuppression_UpstreamOngoing(t *testing.T) {
	m := mustModel(t, parallelModel)
	g := parallelGraph()
	c := NewComputer(m, g, nameMatcher(m, g), oracle.NewDirectlyFollows(nil))

	// A finished, B still running. The join gateway gwJ is fed by both; it
	// must not be reported while B can still feed it.
	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(10)},
		{CaseID: "c1", Activity: "Bill", Start: at(12)},
	})

	cs, ok := res.States["c1"]
	if !ok {
		t.Fatal("case c1 missing from result")
	}
	if got := cs.ControlFlow.Flows; !reflect.DeepEqual(got, []string{"f1"}) {
		t.Errorf("ControlFlow.Flows = %v, want [f1] (B's token narrowed away)", got)
	}
	if len(cs.EnabledGateways) != 0 {
		t.Errorf("EnabledGateways = %v, want none while B is ongoing", cs.EnabledGateways)
	}
}

func TestGatewayEnabledTime_UpstreamMax(t *testing.T) {
	m := mustModel(t, parallelModel)
	g := parallelGraph()
	c := NewComputer(m, g, nameMatcher(m, g), oracle.NewDirectlyFollows(nil))

	// Both branches finished: the join gateway reports the latest upstream
	// end time. Each token flow targeting it yields one record.
	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(10)},
		{CaseID: "c1", Activity: "Bill", Start: at(2), End: at(25)},
	})

	cs, ok := res.States["c1"]
	if !ok {
		t.Fatal("case c1 missing from result")
	}
	if len(cs.EnabledGateways) != 2 {
		t.Fatalf("EnabledGateways = %v, want one record per inbound token flow", cs.EnabledGateways)
	}
	for _, gw := range cs.EnabledGateways {
		if gw.ID != "gwJ" || !gw.Enabled.Equal(at(25)) {
			t.Errorf("enabled gateway = %+v, want gwJ at t=25", gw)
		}
	}
}

func TestGatewayEnabledTime_NoUpstreamFallback(t *testing.T) {
	// gw0 sits directly behind the start event: no upstream task, so its
	// enabled time falls back to the latest end across all finished events.
	m := mustModel(t, parallelModel)
	g := parallelGraph()
	c := NewComputer(m, g, stubMatcher{reachability.NewMarking("f0")}, oracle.NewDirectlyFollows(nil))

	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(30)},
	})

	cs := res.States["c1"]
	if cs == nil || len(cs.EnabledGateways) != 1 {
		t.Fatalf("EnabledGateways = %+v, want one gw0 record", cs)
	}
	gw := cs.EnabledGateways[0]
	if gw.ID != "gw0" || !gw.Enabled.Equal(at(30)) {
		t.Errorf("enabled gateway = %+v, want gw0 at t=30 (global fallback)", gw)
	}
}

func TestBootstrapEnabledTime(t *testing.T) {
	// No finished events: enabled times anchor on the case's earliest
	// start time. The ongoing label is not a model activity, so the
	// matcher marking passes through the intersection untouched.
	m := mustModel(t, seqModel)
	g := seqGraph()
	c := NewComputer(m, g, stubMatcher{reachability.NewMarking("f1")}, oracle.NewDirectlyFollows(nil))

	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Triage", Start: at(5)},
	})

	cs := res.States["c1"]
	if cs == nil {
		t.Fatal("case c1 missing from result")
	}
	if len(cs.EnabledActivities) != 1 {
		t.Fatalf("EnabledActivities = %v, want one record for B", cs.EnabledActivities)
	}
	ea := cs.EnabledActivities[0]
	if ea.ID != "B" || !ea.Enabled.Equal(at(5)) {
		t.Errorf("enabled activity = %+v, want B at t=5 (bootstrap)", ea)
	}
}

func TestEnabledActivity_OracleProbe(t *testing.T) {
	m := mustModel(t, seqModel)
	g := seqGraph()
	orc := oracle.NewDirectlyFollows(nil)
	c := NewComputer(m, g, nameMatcher(m, g), orc)

	// A finished at t=10; the marking {f1} targets B. "Bill" is not in the
	// oracle's table yet, so the computer registers it lazily and probes
	// one second past the latest end time.
	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(10)},
	})

	cs := res.States["c1"]
	if cs == nil {
		t.Fatal("case c1 missing from result")
	}
	if !orc.HasActivity("Bill") {
		t.Error("computer must lazily register unknown activities in the oracle")
	}
	if len(cs.EnabledActivities) != 1 {
		t.Fatalf("EnabledActivities = %v, want one record for B", cs.EnabledActivities)
	}
	ea := cs.EnabledActivities[0]
	if ea.ID != "B" || !ea.Enabled.Equal(at(10)) {
		t.Errorf("enabled activity = %+v, want B at t=10", ea)
	}
}

func TestUnresolvedActivityName(t *testing.T) {
	m := mustModel(t, seqModel)
	g := seqGraph()
	c := NewComputer(m, g, stubMatcher{nil}, oracle.NewDirectlyFollows(nil))

	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "NotInModel", Start: at(3), Resource: "r9"},
	})

	cs := res.States["c1"]
	if cs == nil {
		t.Fatal("case c1 missing from result")
	}
	if len(cs.Ongoing) != 1 || cs.Ongoing[0].TaskID != "" || cs.Ongoing[0].Resource != "r9" {
		t.Errorf("Ongoing = %+v, want one record with empty task id", cs.Ongoing)
	}
	if len(cs.ControlFlow.Activities) != 0 {
		t.Errorf("ControlFlow.Activities = %v, want empty for unresolved label", cs.ControlFlow.Activities)
	}
}

func TestMatcherMiss_EmitsEmptyFlows(t *testing.T) {
	m := mustModel(t, seqModel)
	g := seqGraph()
	c := NewComputer(m, g, stubMatcher{nil}, oracle.NewDirectlyFollows(nil))

	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(10)},
	})

	cs := res.States["c1"]
	if cs == nil {
		t.Fatal("matcher miss must not drop the case")
	}
	if len(cs.ControlFlow.Flows) != 0 || len(cs.EnabledActivities) != 0 || len(cs.EnabledGateways) != 0 {
		t.Errorf("matcher miss must yield no flows or enabled elements, got %+v", cs)
	}
}

func TestFlowsSubsetOfMatcherMarking(t *testing.T) {
	m := mustModel(t, parallelModel)
	g := parallelGraph()
	marking := reachability.NewMarking("f1", "f2")
	c := NewComputer(m, g, stubMatcher{marking}, oracle.NewDirectlyFollows(nil))

	res := compute(t, c, []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(10)},
		{CaseID: "c1", Activity: "Bill", Start: at(12)},
	})

	cs := res.States["c1"]
	if cs == nil {
		t.Fatal("case c1 missing from result")
	}
	for _, f := range cs.ControlFlow.Flows {
		if !marking.Contains(f) {
			t.Errorf("flow %s not in matcher marking %v", f, marking.Sorted())
		}
	}
}

func TestDeterminism_ParallelWorkers(t *testing.T) {
	m := mustModel(t, parallelModel)
	g := parallelGraph()

	events := []model.Event{
		{CaseID: "c1", Activity: "Approve", Start: at(0), End: at(10)},
		{CaseID: "c1", Activity: "Bill", Start: at(12)},
		{CaseID: "c2", Activity: "Approve", Start: at(1), End: at(4)},
		{CaseID: "c2", Activity: "Bill", Start: at(2), End: at(9)},
		{CaseID: "c3", Activity: "Approve", Start: at(7)},
	}

	run := func() map[string]*CaseState {
		c := NewComputer(m, g, nameMatcher(m, g), oracle.NewDirectlyFollows(nil), WithWorkers(4))
		return compute(t, c, events).States
	}

	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged:\n got %+v\nwant %+v", i, got, first)
		}
	}
}
