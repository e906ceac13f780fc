package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

const calendarColumns = `id, account_id, uri, display_name, color, read_only, created_at, updated_at`

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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendars (`+calendarColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.AccountID, c.URI, c.DisplayName, c.Color, c.ReadOnly, now, now)
	return err
}

func scanCalendar(row interface{ Scan(...any) error }) (*storage.Calendar, error) {
	var c storage.Calendar
	if err := row.Scan(&c.ID, &c.AccountID, &c.URI, &c.DisplayName, &c.Color, &c.ReadOnly, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCalendar(ctx context.Context, id string) (*storage.Calendar, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = ?`, id)
	return scanCalendar(row)
}

func (s *Store) ListCalendars(ctx context.Context, accountID string) ([]*storage.Calendar, error) {
	q := `SELECT ` + calendarColumns + ` FROM calendars`
	var args []any
	if accountID != "" {
		q += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
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
