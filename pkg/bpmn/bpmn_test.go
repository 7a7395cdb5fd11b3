package bpmn

import (
	"errors"
	"strings"
	"testing"
)

const sampleModel = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <bpmn:process id="proc">
    <bpmn:startEvent id="start"/>
    <bpmn:task id="A" name="Approve"/>
    <bpmn:task id="B" name="Bill"/>
    <bpmn:task id="C"/>
    <bpmn:exclusiveGateway id="gw1"/>
    <bpmn:endEvent id="end1"/>
    <endEvent id="end2"/>
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="A"/>
    <bpmn:sequenceFlow id="f2" sourceRef="A" targetRef="gw1"/>
    <bpmn:sequenceFlow id="f3" sourceRef="B" targetRef="gw1"/>
    <bpmn:sequenceFlow id="f4" sourceRef="gw1" targetRef="C"/>
    <bpmn:sequenceFlow id="f5" sourceRef="C" targetRef="end1"/>
  </bpmn:process>
</bpmn:definitions>`

func mustParse(t *testing.T, doc string) *Model {
	t.Helper()
	m, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return m
}

func TestParse_Counts(t *testing.T) {
	m := mustParse(t, sampleModel)

	if got := m.ActivityCount(); got != 3 {
		t.Errorf("ActivityCount = %d, want 3", got)
	}
	if got := m.FlowCount(); got != 5 {
		t.Errorf("FlowCount = %d, want 5", got)
	}
}

func TestParse_EndEventsUnion(t *testing.T) {
	m := mustParse(t, sampleModel)

	// Namespaced and non-namespaced end events both count.
	for _, id := range []string{"end1", "end2"} {
		if !m.IsEndEvent(id) {
			t.Errorf("IsEndEvent(%q) = false, want true", id)
		}
	}
	if m.IsEndEvent("gw1") {
		t.Error("IsEndEvent(gw1) = true, want false")
	}
}

func TestParse_UnnamedTaskDefault(t *testing.T) {
	m := mustParse(t, sampleModel)

	name, ok := m.ActivityName("C")
	if !ok || name != "Unnamed Task C" {
		t.Errorf("ActivityName(C) = %q, %v, want %q", name, ok, "Unnamed Task C")
	}
	id, ok := m.TaskIDByName("Unnamed Task C")
	if !ok || id != "C" {
		t.Errorf("TaskIDByName(Unnamed Task C) = %q, %v", id, ok)
	}
}

func TestTaskIDByName_UnknownIsMiss(t *testing.T) {
	m := mustParse(t, sampleModel)

	if id, ok := m.TaskIDByName("Nope"); ok {
		t.Errorf("TaskIDByName(Nope) = %q, want miss", id)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "task without id",
			doc:  `<definitions><task name="X"/></definitions>`,
			want: ErrModelParse,
		},
		{
			name: "flow without targetRef",
			doc:  `<definitions><sequenceFlow id="f" sourceRef="a"/></definitions>`,
			want: ErrModelParse,
		},
		{
			name: "endEvent without id",
			doc:  `<definitions><endEvent/></definitions>`,
			want: ErrModelParse,
		},
		{
			name: "malformed xml",
			doc:  `<definitions><task id="A"`,
			want: ErrModelParse,
		},
		{
			name: "duplicate activity name",
			doc:  `<definitions><task id="A" name="Same"/><task id="B" name="Same"/></definitions>`,
			want: ErrDuplicateActivityName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpstreamTasks(t *testing.T) {
	m := mustParse(t, sampleModel)

	tests := []struct {
		start string
		want  []string
	}{
		// An activity is its own upstream set.
		{"A", []string{"A"}},
		// Gateway fed by two tasks.
		{"gw1", []string{"A", "B"}},
		// End event behind task C; traversal stops at C.
		{"end1", []string{"C"}},
		// Start event has no upstream task.
		{"start", nil},
	}

	for _, tt := range tests {
		got := m.UpstreamTasks(tt.start)
		if len(got) != len(tt.want) {
			t.Errorf("UpstreamTasks(%s) = %v, want %v", tt.start, got, tt.want)
			continue
		}
		for _, id := range tt.want {
			if _, ok := got[id]; !ok {
				t.Errorf("UpstreamTasks(%s) missing %s", tt.start, id)
			}
		}
	}
}

func TestUpstreamTasks_Cycle(t *testing.T) {
	// gw1 -> gw2 -> gw1 loop with one task feeding gw1; must terminate.
	doc := `<definitions>
	  <task id="T" name="T"/>
	  <sequenceFlow id="f1" sourceRef="T" targetRef="gw1"/>
	  <sequenceFlow id="f2" sourceRef="gw1" targetRef="gw2"/>
	  <sequenceFlow id="f3" sourceRef="gw2" targetRef="gw1"/>
	</definitions>`
	m := mustParse(t, doc)

	got := m.UpstreamTasks("gw2")
	if _, ok := got["T"]; !ok || len(got) != 1 {
		t.Errorf("UpstreamTasks(gw2) = %v, want {T}", got)
	}
}
