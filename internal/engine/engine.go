// Package engine wires storage, expansion, editing and access control from
// configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/calendar-engine/internal/acl"
	"github.com/sonroyaalmerol/calendar-engine/internal/config"
	"github.com/sonroyaalmerol/calendar-engine/internal/directory"
	"github.com/sonroyaalmerol/calendar-engine/internal/drag"
	"github.com/sonroyaalmerol/calendar-engine/internal/edit"
	"github.com/sonroyaalmerol/calendar-engine/internal/logging"
	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage/postgres"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage/sqlite"
	"github.com/sonroyaalmerol/calendar-engine/internal/tasks"
	"github.com/sonroyaalmerol/calendar-engine/pkg/ical"
)

type Engine struct {
	Config       *config.Config
	Store        storage.Store
	Expander     *ical.RecurrenceExpander
	Editor       *ical.Editor
	Materializer *occurrence.Materializer
	Feed         *occurrence.Feed
	Runner       *tasks.Runner

	dir    directory.Directory
	acl    acl.Provider
	logger zerolog.Logger
}

// OpenStore opens the backend named by cfg.Storage.Type.
func OpenStore(cfg *config.Config, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresURL, logging.Component(logger, "postgres"))
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLitePath, logging.Component(logger, "sqlite"))
	default:
		return nil, errors.New("unknown storage type: " + cfg.Storage.Type)
	}
}

// New builds an Engine and starts its task worker. The returned cleanup
// drains pending tasks before closing the store.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Engine, func(), error) {
	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	e := NewWithStore(cfg, store, logger)
	if cfg.LDAP.Enabled() {
		dir, err := directory.NewLDAPClient(cfg.LDAP, logger)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		e.dir = dir
		e.acl = acl.NewLDAPACL(dir)
	}
	e.Runner.Start(ctx)

	cleanup := func() {
		e.Runner.Stop()
		if e.dir != nil {
			e.dir.Close()
		}
		store.Close()
	}
	logger.Debug().
		Str("storage", cfg.Storage.Type).
		Bool("ldap", cfg.LDAP.Enabled()).
		Msg("engine ready")
	return e, cleanup, nil
}

// NewWithStore builds an Engine around an open store without LDAP. The
// caller starts and stops the runner.
func NewWithStore(cfg *config.Config, store storage.Store, logger zerolog.Logger) *Engine {
	loc := cfg.Location()
	expander := ical.NewRecurrenceExpander(loc, cfg.Expand.MaxOccurrencesPerEvent)
	materializer := occurrence.NewMaterializer(expander, logger)
	return &Engine{
		Config:       cfg,
		Store:        store,
		Expander:     expander,
		Editor:       ical.NewEditor(cfg.ICS.BuildProdID(), loc),
		Materializer: materializer,
		Feed:         occurrence.NewFeed(store, materializer, logger),
		Runner:       tasks.NewRunner(store, cfg.Tasks.QueueSize, logger),
		logger:       logger,
	}
}

// Coordinator returns an edit coordinator that enqueues on the engine's
// runner.
func (e *Engine) Coordinator(confirm edit.Confirmer) *edit.Coordinator {
	return edit.NewCoordinator(e.Editor, e.Runner, confirm, e.logger)
}

// DragConfig returns the drag preset for a view name ("week" or "month").
func (e *Engine) DragConfig(view string) (drag.Config, error) {
	switch strings.ToLower(view) {
	case "", "week":
		return drag.FromPreset(e.Config.Drag.Week), nil
	case "month":
		return drag.FromPreset(e.Config.Drag.Month), nil
	}
	return drag.Config{}, fmt.Errorf("unknown view %q", view)
}

// Access resolves which of the account's calendars accept changes. Stored
// read-only flags always apply; with LDAP configured the account's group
// grants must also allow writing.
func (e *Engine) Access(ctx context.Context, accountID string) (acl.Access, error) {
	cals, err := e.Store.ListCalendars(ctx, accountID)
	if err != nil {
		return nil, err
	}
	access := acl.FromCalendars(cals)
	if e.acl == nil {
		return access, nil
	}

	user, err := e.dir.LookupUserByAttr(ctx, e.Config.LDAP.TokenUserAttr, accountID)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", accountID, err)
	}
	granted, err := e.acl.Access(ctx, user)
	if err != nil {
		return nil, err
	}
	return access.Intersect(granted), nil
}

// Import stores every series found in data as a source record of
// calendarID. It returns the created records.
func (e *Engine) Import(ctx context.Context, accountID, calendarID string, data []byte) ([]*storage.Event, error) {
	data, _ = ical.EnsureDTStamp(data)
	parts, err := ical.SplitByUID(data)
	if err != nil {
		return nil, err
	}

	var out []*storage.Event
	for _, part := range parts {
		info, err := e.Editor.Describe(part)
		if err != nil {
			return out, err
		}
		ev := &storage.Event{
			AccountID:       accountID,
			CalendarID:      calendarID,
			ICS:             string(part),
			ICSUID:          info.UID,
			RecurrenceID:    info.RecurrenceID,
			RecurrenceStart: info.Start,
			RecurrenceEnd:   info.End,
		}
		if err := e.Store.PutEvent(ctx, ev); err != nil {
			return out, err
		}
		e.logger.Debug().
			Str("event_id", ev.ID).
			Str("icsuid", ev.ICSUID).
			Bool("recurring", info.Recurring).
			Msg("imported event")
		out = append(out, ev)
	}
	return out, nil
}
