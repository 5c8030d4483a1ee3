package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"classwatch/internal/model"
)

// wireEvent mirrors the wire schema. Timestamp is kept raw because both
// epoch-seconds numbers and ISO-8601 strings appear in the same stream.
type wireEvent struct {
	SubjectID  string          `json:"subject_id"`
	Status     string          `json:"status"`
	Confidence *float64        `json:"confidence"`
	Timestamp  json.RawMessage `json:"timestamp"`
}

var statusVocabulary = map[string]model.Status{
	"attentive":  model.StatusAttentive,
	"distracted": model.StatusDistracted,
	"sleeping":   model.StatusSleeping,
	"phone":      model.StatusPhone,
	"reading":    model.StatusReading,
	"writing":    model.StatusWriting,
	"talking":    model.StatusTalking,
	"absent":     model.StatusAbsent,
	"unknown":    model.StatusUnknown,
}

// ParseEvent is the validation boundary between raw broker payloads and the
// rest of the system. Nothing downstream sees an unvalidated shape.
func ParseEvent(data []byte) (model.ActivityEvent, error) {
	var raw wireEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.ActivityEvent{}, fmt.Errorf("decode event: %w", err)
	}

	ev := model.ActivityEvent{
		SubjectID: strings.TrimSpace(raw.SubjectID),
		Status:    NormalizeStatus(raw.Status),
	}
	if ev.SubjectID == "" {
		ev.SubjectID = SynthesizeSubjectID()
	}
	if raw.Confidence != nil {
		ev.Confidence = clampConfidence(*raw.Confidence)
	}

	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return model.ActivityEvent{}, err
	}
	ev.Timestamp = ts
	return ev, nil
}

func NormalizeStatus(value string) model.Status {
	n := strings.ToLower(strings.TrimSpace(value))
	if status, ok := statusVocabulary[n]; ok {
		return status
	}
	return model.StatusUnknown
}

func SynthesizeSubjectID() string {
	return "subject-" + uuid.NewString()[:8]
}

func clampConfidence(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts an epoch-seconds JSON number (fractional allowed)
// or an ISO-8601 string. A missing timestamp falls back to arrival time;
// arrival order stays the authoritative recency signal either way.
func ParseTimestamp(raw json.RawMessage) (time.Time, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return time.Now().UTC(), nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("decode timestamp: %w", err)
		}
		return parseTimestampString(s)
	}
	var sec float64
	if err := json.Unmarshal(raw, &sec); err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp: %w", err)
	}
	return time.Unix(0, int64(sec*float64(time.Second))).UTC(), nil
}

func parseTimestampString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC(), nil
	}
	if sec, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Unix(0, int64(sec*float64(time.Second))).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unsupported timestamp format: " + strconv.Quote(value))
}
