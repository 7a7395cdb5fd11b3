package model

import (
	"testing"
	"time"
)

func at(sec int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, sec, 0, time.UTC)
}

func TestCases_GroupingAndOrder(t *testing.T) {
	log := &Log{Events: []Event{
		{CaseID: "c2", Activity: "A", Start: at(10)},
		{CaseID: "c1", Activity: "B", Start: at(20)},
		{CaseID: "c1", Activity: "A", Start: at(5)},
		{CaseID: "c1", Activity: "C", Start: at(20)}, // tie with B, keeps row order
	}}

	ids, groups := log.Cases()

	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Fatalf("ids = %v, want [c1 c2]", ids)
	}

	c1 := groups["c1"]
	got := make([]string, len(c1))
	for i, ev := range c1 {
		got[i] = ev.Activity
	}
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("c1 order = %v, want %v", got, want)
		}
	}
}

func TestEvent_OngoingAndEnabled(t *testing.T) {
	ev := Event{Start: at(1)}
	if !ev.Ongoing() {
		t.Error("event with zero end must be ongoing")
	}
	if ev.HasEnabled() {
		t.Error("zero enabled time must read as unknown")
	}

	ev.End = at(2)
	ev.Enabled = at(0)
	if ev.Ongoing() {
		t.Error("event with an end time must not be ongoing")
	}
	if !ev.HasEnabled() {
		t.Error("recorded enabled time must be visible")
	}
}
