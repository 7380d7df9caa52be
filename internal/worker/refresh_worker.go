package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/observability/metrics"
	"github.com/entrasecure/entrasecure/internal/service"
)

// Broadcaster receives each freshly built overview; the websocket stream
// implements it
type Broadcaster interface {
	Broadcast(overview *domain.SecurityOverview)
}

// RefreshWorker periodically rebuilds the security overview with an
// app-only token and stores the snapshot, so the dashboard can serve a
// recent view instantly and websocket clients see updates without polling.
type RefreshWorker struct {
	overview    *service.OverviewService
	snapshots   domain.SnapshotRepository
	tokens      domain.TokenProvider
	broadcaster Broadcaster
	logger      *slog.Logger
	interval    time.Duration
	maxRetries  int
}

// NewRefreshWorker creates a new refresh worker
func NewRefreshWorker(
	overview *service.OverviewService,
	snapshots domain.SnapshotRepository,
	tokens domain.TokenProvider,
	broadcaster Broadcaster,
	logger *slog.Logger,
	interval time.Duration,
) *RefreshWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &RefreshWorker{
		overview:    overview,
		snapshots:   snapshots,
		tokens:      tokens,
		broadcaster: broadcaster,
		logger:      logger,
		interval:    interval,
		maxRetries:  3,
	}
}

// Start begins the refresh loop. An immediate first pass warms the snapshot
// before the first tick.
func (w *RefreshWorker) Start(ctx context.Context) {
	w.logger.Info("refresh worker started", slog.Duration("interval", w.interval))

	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("refresh worker stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// refresh runs one rebuild with retry and backoff
func (w *RefreshWorker) refresh(ctx context.Context) {
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt*attempt) * time.Second
			w.logger.Warn("retrying overview refresh", slog.Int("attempt", attempt), slog.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}

		if w.performRefresh(ctx) {
			return
		}
	}

	w.logger.Error("overview refresh failed after retries", slog.Int("max_retries", w.maxRetries))
}

func (w *RefreshWorker) performRefresh(ctx context.Context) bool {
	token, err := w.tokens.AccessToken(ctx, "")
	if err != nil {
		w.logger.Error("refresh token acquisition failed", slog.String("error", err.Error()))
		return false
	}

	overview, err := w.overview.BuildOverview(ctx, token)
	if err != nil {
		w.logger.Error("overview refresh failed", slog.String("error", err.Error()))
		return false
	}

	if err := w.snapshots.SaveLatest(overview); err != nil {
		w.logger.Error("snapshot save failed", slog.String("error", err.Error()))
		return false
	}
	metrics.SetSnapshotAge(0)

	if w.broadcaster != nil {
		w.broadcaster.Broadcast(overview)
	}

	w.logger.Info("overview snapshot refreshed",
		slog.Int("users", overview.Totals.Users),
		slog.Int("ownerless_groups", overview.GroupsWithoutOwners.Count),
		slog.Int("privileged_assignments", overview.Privileged.Assignments),
	)
	return true
}
