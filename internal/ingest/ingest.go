package ingest

import (
	"context"
	"log/slog"

	"classwatch/internal/model"
	"classwatch/internal/telemetry"
)

func SendNonBlocking(ctx context.Context, out chan<- model.ActivityEvent, ev model.ActivityEvent, logger *slog.Logger) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	default:
		telemetry.EventDropped("channel_full")
		if logger != nil {
			logger.Warn("event channel full, dropping event", "subject_id", ev.SubjectID, "status", ev.Status)
		}
		return false
	}
}
