// Package alert classifies observations. The predicate is pure: no state,
// no I/O.
package alert

import (
	"strings"

	"github.com/google/uuid"

	"classwatch/internal/model"
)

var defaultTokens = []string{"distract", "sleep", "phone"}

type Engine struct {
	tokens []string
}

func NewEngine(tokens []string) *Engine {
	if len(tokens) == 0 {
		tokens = defaultTokens
	}
	lowered := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			lowered = append(lowered, tok)
		}
	}
	return &Engine{tokens: lowered}
}

// Match reports whether the status contains any alert-worthy token,
// case-insensitive.
func (e *Engine) Match(status model.Status) bool {
	n := strings.ToLower(string(status))
	for _, tok := range e.tokens {
		if strings.Contains(n, tok) {
			return true
		}
	}
	return false
}

// New builds an alert record for a matching event. Repeated alert-worthy
// events for the same subject accumulate separate alerts; deduplication is
// intentionally not applied.
func (e *Engine) New(ev model.ActivityEvent) model.Alert {
	return model.Alert{
		ID:         uuid.NewString(),
		SubjectID:  ev.SubjectID,
		Status:     ev.Status,
		Confidence: ev.Confidence,
		Timestamp:  ev.Timestamp,
	}
}
