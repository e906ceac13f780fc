package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
)

// Migrate brings the schema behind m up to date. A dirty schema left by an
// interrupted run is forced back to its recorded version first.
func Migrate(m *migrate.Migrate, backend string, logger zerolog.Logger) error {
	log := logger.With().Str("backend", backend).Logger()

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		log.Warn().Uint("version", from).Msg("schema is dirty, forcing version")
		if err := m.Force(int(from)); err != nil {
			return fmt.Errorf("force schema version %d: %w", from, err)
		}
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug().Uint("version", from).Msg("schema up to date")
		return nil
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	}

	to, _, _ := m.Version()
	log.Info().Uint("from_version", from).Uint("to_version", to).Msg("migrations applied")
	return nil
}
