package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/fafa-store/internal/db"
)

// EventStore defines the persistence operations required by the event bus and relay.
type EventStore interface {
	Insert(ctx context.Context, ev Event) (Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	Unpublished(ctx context.Context, olderThan time.Time, limit int) ([]Event, error)
}

// PgStore implements EventStore on the domain_events table.
type PgStore struct {
	DB db.DBTX
}

// NewPgStore wraps a pool or transaction.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{DB: conn}
}

// Insert persists ev.
func (s *PgStore) Insert(ctx context.Context, ev Event) (Event, error) {
	_, err := s.DB.Exec(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}

// MarkPublished stamps the event as delivered to the broker.
func (s *PgStore) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.DB.Exec(ctx, `UPDATE domain_events SET published_at = $2 WHERE id = $1 AND published_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

// Unpublished lists events emitted before olderThan that never reached the broker.
func (s *PgStore) Unpublished(ctx context.Context, olderThan time.Time, limit int) ([]Event, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, topic, aggregate_id, payload, occurred_at FROM domain_events
		WHERE published_at IS NULL AND occurred_at < $1
		ORDER BY occurred_at LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished events: %w", err)
	}
	defer rows.Close()
	out := make([]Event, 0)
	for rows.Next() {
		var (
			ev      Event
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}
