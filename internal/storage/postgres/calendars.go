package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

const calendarColumns = `id::text, account_id, uri, display_name, color, read_only, created_at, updated_at`

func (s *Store) CreateCalendar(ctx context.Context, c *storage.Calendar) error {
	if c.AccountID == "" {
		return fmt.Errorf("AccountID required")
	}
	if c.URI == "" {
		return fmt.Errorf("URI required")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Color == "" {
		c.Color = "#3174ad"
	}
	if c.DisplayName == "" {
		c.DisplayName = c.URI
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
        insert into calendars (id, account_id, uri, display_name, color, read_only, created_at, updated_at)
        values ($1::uuid, $2, $3, $4, $5, $6, $7, $7)
    `, c.ID, c.AccountID, c.URI, c.DisplayName, c.Color, c.ReadOnly, now)
	return err
}

func scanCalendar(row pgx.Row) (*storage.Calendar, error) {
	var c storage.Calendar
	if err := row.Scan(&c.ID, &c.AccountID, &c.URI, &c.DisplayName, &c.Color, &c.ReadOnly, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCalendar(ctx context.Context, id string) (*storage.Calendar, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `select `+calendarColumns+` from calendars where id = $1::uuid`, id)
	return scanCalendar(row)
}

func (s *Store) ListCalendars(ctx context.Context, accountID string) ([]*storage.Calendar, error) {
	rows, err := s.pool.Query(ctx, `
        select `+calendarColumns+` from calendars
        where $1 = '' or account_id = $1
        order by created_at, id
    `, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
