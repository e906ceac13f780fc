package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sonroyaalmerol/calendar-engine/internal/config"
	"github.com/sonroyaalmerol/calendar-engine/internal/engine"
	"github.com/sonroyaalmerol/calendar-engine/internal/logging"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

func main() {
	var (
		account     string
		calURI      string
		displayName string
		color       string
		readOnly    bool
		importPath  string
		calendarID  string
	)
	flag.StringVar(&account, "account", "", "Owning account ID (required)")
	flag.StringVar(&calURI, "uri", "", "Calendar URI, unique per account (creates a calendar)")
	flag.StringVar(&displayName, "display", "", "Calendar display name (optional; defaults to uri)")
	flag.StringVar(&color, "color", "", "Calendar color (optional)")
	flag.BoolVar(&readOnly, "read-only", false, "Mark the new calendar read-only")
	flag.StringVar(&importPath, "import", "", "iCalendar file to import (optional)")
	flag.StringVar(&calendarID, "calendar", "", "Target calendar ID for -import (defaults to the calendar created by -uri)")
	flag.Parse()

	if account == "" || (calURI == "" && importPath == "") {
		fmt.Fprintln(os.Stderr, "usage: calengine-bootstrap -account <id> [-uri <calendar-uri> [-display <name>] [-color <#rrggbb>] [-read-only]] [-import <file.ics> [-calendar <id>]]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger = logging.Component(logger, "bootstrap")

	store, err := engine.OpenStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage init: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	if calURI != "" {
		cal := &storage.Calendar{
			AccountID:   account,
			URI:         calURI,
			DisplayName: displayName,
			Color:       color,
			ReadOnly:    readOnly,
		}
		if err := store.CreateCalendar(ctx, cal); err != nil {
			fmt.Fprintf(os.Stderr, "create calendar: %v\n", err)
			os.Exit(1)
		}
		logger.Info().
			Str("account", account).
			Str("uri", cal.URI).
			Str("calendar_id", cal.ID).
			Bool("read_only", cal.ReadOnly).
			Msg("calendar created")
		fmt.Printf("Created calendar id=%s account=%s uri=%s display=%q\n", cal.ID, account, cal.URI, cal.DisplayName)
		if calendarID == "" {
			calendarID = cal.ID
		}
	}

	if importPath == "" {
		return
	}
	if calendarID == "" {
		fmt.Fprintln(os.Stderr, "import: -calendar is required without -uri")
		os.Exit(2)
	}
	data, err := os.ReadFile(importPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		os.Exit(1)
	}

	e := engine.NewWithStore(cfg, store, logger)
	records, err := e.Import(ctx, account, calendarID, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		os.Exit(1)
	}
	for _, rec := range records {
		fmt.Printf("Imported %s uid=%s [%d, %d]\n", rec.ID, rec.ICSUID, rec.RecurrenceStart, rec.RecurrenceEnd)
	}
}
