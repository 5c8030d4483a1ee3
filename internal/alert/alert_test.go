package alert

import (
	"testing"

	"classwatch/internal/model"
)

func TestMatch(t *testing.T) {
	e := NewEngine(nil)
	cases := []struct {
		status model.Status
		want   bool
	}{
		{model.StatusDistracted, true},
		{model.StatusSleeping, true},
		{model.StatusPhone, true},
		{model.StatusAttentive, false},
		{model.StatusReading, false},
		{model.StatusUnknown, false},
		{model.Status("DISTRACTED"), true},
	}
	for _, c := range cases {
		if got := e.Match(c.status); got != c.want {
			t.Fatalf("Match(%q) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestMatchCustomTokens(t *testing.T) {
	e := NewEngine([]string{"absent"})
	if !e.Match(model.StatusAbsent) {
		t.Fatalf("expected absent to match")
	}
	if e.Match(model.StatusPhone) {
		t.Fatalf("phone should not match custom token set")
	}
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	e := NewEngine(nil)
	ev := model.ActivityEvent{SubjectID: "S101", Status: model.StatusPhone, Confidence: 0.95}
	a1 := e.New(ev)
	a2 := e.New(ev)
	if a1.ID == "" || a1.ID == a2.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a1.ID, a2.ID)
	}
	if a1.SubjectID != "S101" || a1.Status != model.StatusPhone {
		t.Fatalf("unexpected alert: %+v", a1)
	}
}
