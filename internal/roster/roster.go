// Package roster fetches the optional class roster. The pipeline works
// without it; subject identities are otherwise discovered from events.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"classwatch/internal/config"
	"classwatch/internal/model"
)

func Fetch(ctx context.Context, cfg config.RosterConfig, logger *slog.Logger) []model.RosterEntry {
	if !cfg.Enabled || cfg.URL == "" {
		return nil
	}
	entries, err := fetch(ctx, cfg.URL, cfg.Timeout)
	if err != nil {
		if logger != nil {
			logger.Warn("roster fetch failed, proceeding with empty roster", "err", err, "url", cfg.URL)
		}
		return nil
	}
	return entries
}

func fetch(ctx context.Context, url string, timeout time.Duration) ([]model.RosterEntry, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roster endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var entries []model.RosterEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	out := entries[:0]
	for _, e := range entries {
		if e.SubjectID != "" {
			out = append(out, e)
		}
	}
	return out, nil
}
