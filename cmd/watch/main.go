// watch runs a dashboard session against a classwatchd instance: it
// starts the synthetic generator immediately and cuts over to the live
// stream once the server delivers, logging the reconciled view as it goes.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classwatch/internal/config"
	"classwatch/internal/logging"
	"classwatch/internal/session"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/alerts", "live subscription endpoint")
	interval := flag.Duration("interval", 3*time.Second, "synthetic event interval")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := logging.NewLogger(*logLevel)

	cfg := config.DefaultConfig().Session
	cfg.SyntheticInterval = *interval
	cfg.LiveURL = *url

	live := session.NewWSLive(cfg.LiveURL, logger)
	sess := session.New(cfg, live, session.WithLogger(logger))
	sess.Start()
	defer sess.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			snap := sess.Snapshot()
			logger.Info("dashboard state",
				"state", string(snap.State),
				"feed", len(snap.Feed),
				"subjects", len(snap.Subjects),
				"alerts", len(snap.Alerts),
			)
		case <-sig:
			logger.Info("shutting down")
			return
		}
	}
}
