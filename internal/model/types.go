package model

import "time"

type Source string

const (
	SourceLive      Source = "live"
	SourceSynthetic Source = "synthetic"
)

type Status string

const (
	StatusAttentive  Status = "attentive"
	StatusDistracted Status = "distracted"
	StatusSleeping   Status = "sleeping"
	StatusPhone      Status = "phone"
	StatusReading    Status = "reading"
	StatusWriting    Status = "writing"
	StatusTalking    Status = "talking"
	StatusAbsent     Status = "absent"
	StatusUnknown    Status = "unknown"
)

// ActivityEvent is a single validated observation. Source is an internal
// tag and never crosses the wire.
type ActivityEvent struct {
	SubjectID  string    `json:"subject_id"`
	Status     Status    `json:"status"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Source     Source    `json:"-"`
}

type SubjectState struct {
	SubjectID  string    `json:"subject_id"`
	Name       string    `json:"name,omitempty"`
	Status     Status    `json:"status"`
	Confidence float64   `json:"confidence"`
	LastSeen   time.Time `json:"last_seen"`
}

type Alert struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subject_id"`
	Status     Status    `json:"status"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type RosterEntry struct {
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
}
