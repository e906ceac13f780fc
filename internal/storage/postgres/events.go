package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

const eventColumns = `id, account_id, calendar_id::text, ics, icsuid, recurrence_id, recurrence_start, recurrence_end, updated_at`

func scanEvent(row pgx.Row) (*storage.Event, error) {
	var e storage.Event
	var rid *string
	if err := row.Scan(&e.ID, &e.AccountID, &e.CalendarID, &e.ICS, &e.ICSUID, &rid, &e.RecurrenceStart, &e.RecurrenceEnd, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if rid != nil {
		e.RecurrenceID = *rid
	}
	return &e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Store) GetEvent(ctx context.Context, id string) (*storage.Event, error) {
	row := s.pool.QueryRow(ctx, `select `+eventColumns+` from events where id = $1`, id)
	return scanEvent(row)
}

func (s *Store) PutEvent(ctx context.Context, ev *storage.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
        insert into events (id, account_id, calendar_id, ics, icsuid, recurrence_id, recurrence_start, recurrence_end, updated_at)
        values ($1, $2, $3::uuid, $4, $5, $6, $7, $8, $9)
        on conflict (id) do update set
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
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `delete from events where id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListEventsInRange(ctx context.Context, calendarIDs []string, start, end int64) ([]*storage.Event, error) {
	if len(calendarIDs) == 0 {
		return s.queryEvents(ctx, `
            select `+eventColumns+` from events
            where recurrence_start <= $1 and recurrence_end >= $2
            order by recurrence_start, id
        `, end, start)
	}
	return s.queryEvents(ctx, `
        select `+eventColumns+` from events
        where recurrence_start <= $1 and recurrence_end >= $2
          and calendar_id::text = any($3)
        order by recurrence_start, id
    `, end, start, calendarIDs)
}

func (s *Store) ListEventsByICSUID(ctx context.Context, calendarID, icsuid string) ([]*storage.Event, error) {
	return s.queryEvents(ctx, `
        select `+eventColumns+` from events
        where calendar_id::text = $1 and icsuid = $2
        order by recurrence_id is not null, recurrence_start, id
    `, calendarID, icsuid)
}

func (s *Store) queryEvents(ctx context.Context, q string, args ...any) ([]*storage.Event, error) {
	rows, err := s.pool.Query(ctx, q, args...)
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
