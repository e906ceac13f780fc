package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

func (s *Store) PushUndo(ctx context.Context, entry *storage.UndoEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
        insert into undo_entries (id, event_id, ics, recurrence_start, recurrence_end, description, created_at)
        values ($1::uuid, $2, $3, $4, $5, $6, $7)
    `, entry.ID, entry.EventID, entry.ICS, entry.RecurrenceStart, entry.RecurrenceEnd, entry.Description, entry.CreatedAt)
	return err
}

// PopUndo removes and returns the most recent entry.
func (s *Store) PopUndo(ctx context.Context) (*storage.UndoEntry, error) {
	var e storage.UndoEntry
	err := s.pool.QueryRow(ctx, `
        delete from undo_entries
        where seq = (select max(seq) from undo_entries)
        returning id::text, event_id, ics, recurrence_start, recurrence_end, description, created_at
    `).Scan(&e.ID, &e.EventID, &e.ICS, &e.RecurrenceStart, &e.RecurrenceEnd, &e.Description, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
