package ingest

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"classwatch/internal/config"
	"classwatch/internal/model"
	"classwatch/internal/telemetry"
)

// StartKafka consumes the activity topic and feeds validated events into
// out. Malformed payloads are dropped and logged; no read or parse failure
// terminates the loop.
func StartKafka(ctx context.Context, cfg *config.Manager, out chan<- model.ActivityEvent, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			ev, err := ParseEvent(m.Value)
			if err != nil {
				telemetry.EventDropped("parse_error")
				if logger != nil {
					logger.Warn("dropping malformed event", "err", err, "partition", m.Partition, "offset", m.Offset)
				}
				continue
			}
			ev.Source = model.SourceLive
			telemetry.EventIngested()
			SendNonBlocking(ctx, out, ev, logger)
		}
	}()
}
