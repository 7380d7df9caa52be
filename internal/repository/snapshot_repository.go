package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/infrastructure/redis"
)

const (
	latestSnapshotKey  = "overview:latest"
	snapshotHistoryKey = "overview:history"
	historyDepth       = 24
)

// SnapshotRepository implements domain.SnapshotRepository using Redis. The
// latest overview lives under a single key with a TTL; a capped list keeps
// recent generations for trend views.
type SnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SnapshotRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotRepository{client: client, ttl: ttl, logger: logger}
}

// SaveLatest stores the overview as the current snapshot and pushes it onto
// the history list
func (r *SnapshotRepository) SaveLatest(overview *domain.SecurityOverview) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(overview)
	if err != nil {
		return fmt.Errorf("failed to marshal overview: %w", err)
	}

	if err := r.client.Set(ctx, latestSnapshotKey, data, r.ttl); err != nil {
		return fmt.Errorf("failed to store overview: %w", err)
	}

	if err := r.client.LPush(ctx, snapshotHistoryKey, data); err != nil {
		return fmt.Errorf("failed to append overview history: %w", err)
	}
	if err := r.client.LTrim(ctx, snapshotHistoryKey, 0, historyDepth-1); err != nil {
		r.logger.Warn("failed to trim overview history", "error", err)
	}

	return nil
}

// GetLatest returns the current snapshot, or nil when none is stored or the
// TTL has lapsed
func (r *SnapshotRepository) GetLatest() (*domain.SecurityOverview, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, latestSnapshotKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get overview: %w", err)
	}

	var overview domain.SecurityOverview
	if err := json.Unmarshal([]byte(data), &overview); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overview: %w", err)
	}
	return &overview, nil
}

// History returns up to limit recent snapshots, newest first
func (r *SnapshotRepository) History(limit int) ([]*domain.SecurityOverview, error) {
	if limit <= 0 || limit > historyDepth {
		limit = historyDepth
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := r.client.LRange(ctx, snapshotHistoryKey, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read overview history: %w", err)
	}

	out := make([]*domain.SecurityOverview, 0, len(entries))
	for _, entry := range entries {
		var overview domain.SecurityOverview
		if err := json.Unmarshal([]byte(entry), &overview); err != nil {
			r.logger.Warn("skipping malformed history entry", "error", err)
			continue
		}
		out = append(out, &overview)
	}
	return out, nil
}
