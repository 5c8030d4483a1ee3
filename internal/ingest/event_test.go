package ingest

import (
	"strings"
	"testing"
	"time"

	"classwatch/internal/model"
)

func TestParseEventEpochTimestamp(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"subject_id":"S101","status":"attentive","confidence":0.9,"timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.SubjectID != "S101" {
		t.Fatalf("subject id: %s", ev.SubjectID)
	}
	if ev.Status != model.StatusAttentive {
		t.Fatalf("status: %s", ev.Status)
	}
	want := time.Unix(1700000000, 0).UTC()
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("timestamp: %v, want %v", ev.Timestamp, want)
	}
}

func TestParseEventISOTimestamp(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"subject_id":"S102","status":"phone","confidence":0.95,"timestamp":"2024-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("timestamp: %v, want %v", ev.Timestamp, want)
	}
}

func TestParseEventMissingSubjectID(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"status":"sleeping","confidence":0.8,"timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !strings.HasPrefix(ev.SubjectID, "subject-") {
		t.Fatalf("expected synthesized subject id, got %q", ev.SubjectID)
	}
}

func TestParseEventConfidenceClamped(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"subject_id":"S1","status":"attentive","confidence":1.7,"timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.Confidence != 1 {
		t.Fatalf("confidence not clamped to 1: %f", ev.Confidence)
	}
	ev, err = ParseEvent([]byte(`{"subject_id":"S1","status":"attentive","confidence":-0.4,"timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.Confidence != 0 {
		t.Fatalf("confidence not clamped to 0: %f", ev.Confidence)
	}
}

func TestParseEventConfidenceDefaultsToZero(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"subject_id":"S1","status":"attentive","timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.Confidence != 0 {
		t.Fatalf("confidence: %f", ev.Confidence)
	}
}

func TestParseEventUnknownStatus(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"subject_id":"S1","status":"Moonwalking","timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.Status != model.StatusUnknown {
		t.Fatalf("status: %s", ev.Status)
	}
}

func TestParseEventStatusCaseInsensitive(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"subject_id":"S1","status":"  DISTRACTED ","timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.Status != model.StatusDistracted {
		t.Fatalf("status: %s", ev.Status)
	}
}

func TestParseEventMissingTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Minute)
	ev, err := ParseEvent([]byte(`{"subject_id":"S1","status":"attentive"}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.Timestamp.Before(before) {
		t.Fatalf("expected arrival-time fallback, got %v", ev.Timestamp)
	}
}

func TestParseEventMalformed(t *testing.T) {
	if _, err := ParseEvent([]byte(`{not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if _, err := ParseEvent([]byte(`{"subject_id":"S1","timestamp":"not-a-time"}`)); err == nil {
		t.Fatalf("expected error for bad timestamp")
	}
}

func TestParseEventNeverSerializesSource(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"subject_id":"S1","status":"attentive","timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.Source != "" {
		t.Fatalf("source should be unset at the parse boundary: %q", ev.Source)
	}
}
