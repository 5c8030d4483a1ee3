package session

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"classwatch/internal/model"
)

const defaultSyntheticInterval = 3 * time.Second

var syntheticStatuses = []model.Status{
	model.StatusAttentive,
	model.StatusAttentive,
	model.StatusReading,
	model.StatusWriting,
	model.StatusDistracted,
	model.StatusTalking,
	model.StatusPhone,
	model.StatusSleeping,
}

// startGenerator emits one synthetic observation per interval until stop
// is closed. Subjects come from the roster when one was provided, otherwise
// from a small placeholder pool, so the dashboard has plausible rows before
// any real data exists.
func startGenerator(clock clockwork.Clock, interval time.Duration, subjectIDs []string, out chan<- model.ActivityEvent, stop <-chan struct{}) {
	if interval <= 0 {
		interval = defaultSyntheticInterval
	}
	if len(subjectIDs) == 0 {
		subjectIDs = placeholderSubjects(8)
	}
	go func() {
		ticker := clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				ev := syntheticEvent(subjectIDs)
				select {
				case out <- ev:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func syntheticEvent(subjectIDs []string) model.ActivityEvent {
	return model.ActivityEvent{
		SubjectID:  subjectIDs[rand.IntN(len(subjectIDs))],
		Status:     syntheticStatuses[rand.IntN(len(syntheticStatuses))],
		Confidence: 0.5 + rand.Float64()/2,
		Timestamp:  time.Now().UTC(),
		Source:     model.SourceSynthetic,
	}
}

func placeholderSubjects(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%03d", 101+i)
	}
	return out
}
