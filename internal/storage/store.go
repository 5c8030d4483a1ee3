package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"classwatch/internal/config"
	"classwatch/internal/model"
)

// Store is the durable record of observations. It is consulted for
// historical queries only; the live broadcast path never waits on it.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveEvent(ctx context.Context, ev model.ActivityEvent) error
	RecentEvents(ctx context.Context, limit int) ([]model.ActivityEvent, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]model.ActivityEvent, error) {
	defer rows.Close()
	out := make([]model.ActivityEvent, 0)
	for rows.Next() {
		var ev model.ActivityEvent
		var status string
		if err := rows.Scan(&ev.SubjectID, &status, &ev.Confidence, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Status = model.Status(status)
		out = append(out, ev)
	}
	return out, rows.Err()
}
