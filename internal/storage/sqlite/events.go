package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

const eventColumns = `id, account_id, calendar_id, ics, icsuid, recurrence_id, recurrence_start, recurrence_end, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*storage.Event, error) {
	var e storage.Event
	var rid sql.NullString
	if err := row.Scan(&e.ID, &e.AccountID, &e.CalendarID, &e.ICS, &e.ICSUID, &rid, &e.RecurrenceStart, &e.RecurrenceEnd, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	e.RecurrenceID = rid.String
	return &e, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) GetEvent(ctx context.Context, id string) (*storage.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

func (s *Store) PutEvent(ctx context.Context, ev *storage.Event) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		ev.UpdatedAt = time.Now().UTC()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				account_id = excluded.account_id,
				calendar_id = excluded.calendar_id,
				ics = excluded.ics,
				icsuid = excluded.icsuid,
				recurrence_id = excluded.recurrence_id,
				recurrence_start = excluded.recurrence_start,
				recurrence_end = excluded.recurrence_end,
				updated_at = excluded.updated_at
		`, ev.ID, ev.AccountID, ev.CalendarID, ev.ICS, ev.ICSUID, nullable(ev.RecurrenceID),
			ev.RecurrenceStart, ev.RecurrenceEnd, ev.UpdatedAt)
		return err
	})
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListEventsInRange(ctx context.Context, calendarIDs []string, start, end int64) ([]*storage.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE recurrence_start <= ? AND recurrence_end >= ?`
	args := []any{end, start}
	if len(calendarIDs) > 0 {
		placeholders := make([]string, len(calendarIDs))
		for i, id := range calendarIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		q += ` AND calendar_id IN (` + strings.Join(placeholders, ", ") + `)`
	}
	q += ` ORDER BY recurrence_start, id`
	return s.queryEvents(ctx, q, args...)
}

func (s *Store) ListEventsByICSUID(ctx context.Context, calendarID, icsuid string) ([]*storage.Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE calendar_id = ? AND icsuid = ?
		ORDER BY recurrence_id IS NOT NULL, recurrence_start, id`, calendarID, icsuid)
}

func (s *Store) queryEvents(ctx context.Context, q string, args ...any) ([]*storage.Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
