// sendevents publishes synthetic wire-schema observations to the activity
// topic, keyed by subject_id so per-subject ordering is preserved across
// partitions. Useful for exercising a local pipeline end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"classwatch/internal/logging"
)

var statuses = []string{"attentive", "distracted", "sleeping", "phone", "reading", "writing", "talking"}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated broker list")
	topic := flag.String("topic", "student-activity", "target topic")
	count := flag.Int("count", 0, "number of events to send (0 = until interrupted)")
	interval := flag.Duration("interval", time.Second, "delay between events")
	subjectCount := flag.Int("subjects", 8, "size of the simulated class")
	flag.Parse()

	logger := logging.NewLogger("info")

	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sent := 0
	for *count == 0 || sent < *count {
		subject := fmt.Sprintf("S%03d", 101+rand.IntN(*subjectCount))
		payload := map[string]any{
			"subject_id": subject,
			"status":     statuses[rand.IntN(len(statuses))],
			"confidence": 0.5 + rand.Float64()/2,
		}
		// Alternate timestamp encodings; consumers must accept both.
		if sent%2 == 0 {
			payload["timestamp"] = time.Now().Unix()
		} else {
			payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
		}
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Error("marshal event", "err", err)
			os.Exit(1)
		}
		err = writer.WriteMessages(ctx, kafka.Message{Key: []byte(subject), Value: data})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("write failed", "err", err)
		} else {
			sent++
		}
		select {
		case <-time.After(*interval):
		case <-ctx.Done():
			logger.Info("interrupted", "sent", sent)
			return
		}
	}
	logger.Info("done", "sent", sent)
}
