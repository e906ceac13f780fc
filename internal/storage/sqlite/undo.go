package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

func (s *Store) PushUndo(ctx context.Context, entry *storage.UndoEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO undo_entries (id, event_id, ics, recurrence_start, recurrence_end, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.EventID, entry.ICS, entry.RecurrenceStart, entry.RecurrenceEnd, entry.Description, entry.CreatedAt)
	return err
}

// PopUndo removes and returns the most recent entry.
func (s *Store) PopUndo(ctx context.Context) (*storage.UndoEntry, error) {
	var out *storage.UndoEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var e storage.UndoEntry
		var seq int64
		err := tx.QueryRowContext(ctx, `
			SELECT seq, id, event_id, ics, recurrence_start, recurrence_end, description, created_at
			FROM undo_entries ORDER BY seq DESC LIMIT 1
		`).Scan(&seq, &e.ID, &e.EventID, &e.ICS, &e.RecurrenceStart, &e.RecurrenceEnd, &e.Description, &e.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM undo_entries WHERE seq = ?`, seq); err != nil {
			return err
		}
		out = &e
		return nil
	})
	return out, err
}
