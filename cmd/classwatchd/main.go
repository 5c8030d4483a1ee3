package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"classwatch/internal/api"
	"classwatch/internal/config"
	"classwatch/internal/feed"
	"classwatch/internal/hub"
	"classwatch/internal/ingest"
	"classwatch/internal/logging"
	"classwatch/internal/model"
	"classwatch/internal/pipeline"
	"classwatch/internal/roster"
	"classwatch/internal/storage"
	"classwatch/internal/subjects"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	flag.Parse()

	var cfg *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = m
	} else {
		cfg = config.NewManagerFromConfig(config.DefaultConfig())
	}

	logger := logging.NewLogger(cfg.Get().LogLevel)
	logger.Info("classwatchd starting", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	current := cfg.Get()

	store, err := storage.NewStore(current.Storage)
	if err != nil {
		logger.Error("open storage", "err", err)
		os.Exit(1)
	}
	var writer *storage.Writer
	if store != nil {
		if err := store.Init(ctx); err != nil {
			logger.Error("init storage", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		writer = storage.NewWriter(store, current.Storage.QueueSize, current.Storage.MaxRetries, current.Storage.RetryDelay, logger)
		writer.Start(ctx)
	}

	broadcast := hub.New(current.API.SubscriberBuffer, logger)
	defer broadcast.Close()
	recent := feed.NewBuffer(current.Storage.RecentLimit)
	subjectStore := subjects.NewStore()

	for _, entry := range roster.Fetch(ctx, current.Roster, logger) {
		subjectStore.SetName(entry.SubjectID, entry.Name)
	}

	var persist pipeline.PersistQueue
	if writer != nil {
		persist = writer
	}
	consumer := pipeline.NewConsumer(broadcast, persist, recent, subjectStore, logger)

	events := make(chan model.ActivityEvent, current.Ingest.ChannelBuffer)
	ingest.StartKafka(ctx, cfg, events, logger)
	go consumer.Run(ctx, events)

	api.Start(ctx, cfg, broadcast, recent, subjectStore, store, logger, version)

	<-ctx.Done()
	logger.Info("classwatchd shutting down")
}
