package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Logger records administrative actions against the directory. Every event
// goes to the structured log; when a store is attached it is also persisted
// for later review.
type Logger struct {
	logger *slog.Logger
	store  *Store
}

// NewLogger creates an audit logger. store may be nil.
func NewLogger(logger *slog.Logger, store *Store) *Logger {
	return &Logger{logger: logger, store: store}
}

// LogAction records one administrative action
func (al *Logger) LogAction(ctx context.Context, actorID, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("actor_id", actorID),
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("status", status),
		slog.String("details", details),
	)
	if al.store != nil {
		if err := al.store.Insert(ctx, Event{
			ID:         uuid.NewString(),
			OccurredAt: time.Now().UTC(),
			ActorID:    actorID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			Status:     status,
			Details:    details,
		}); err != nil {
			al.logger.Error("audit persist failed", slog.String("error", err.Error()))
		}
	}
}

// LogDenied records a rejected access attempt
func (al *Logger) LogDenied(ctx context.Context, actorID, reason string) {
	al.LogAction(ctx, actorID, "access_denied", "api", "", "denied", reason)
}

// Event is one persisted audit record
type Event struct {
	ID         string
	OccurredAt time.Time
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Status     string
	Details    string
}

// Store persists audit events in postgres
type Store struct {
	db *sql.DB
}

// NewStore creates an audit store over an open connection pool
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert writes one event
func (s *Store) Insert(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, occurred_at, actor_id, action, resource, resource_id, status, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.OccurredAt, e.ActorID, e.Action, e.Resource, e.ResourceID, e.Status, e.Details,
	)
	return err
}

// Recent returns the most recent events, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, occurred_at, actor_id, action, resource, resource_id, status, details
		 FROM audit_events ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.ActorID, &e.Action, &e.Resource, &e.ResourceID, &e.Status, &e.Details); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
