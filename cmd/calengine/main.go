package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonroyaalmerol/calendar-engine/internal/config"
	"github.com/sonroyaalmerol/calendar-engine/internal/engine"
	"github.com/sonroyaalmerol/calendar-engine/internal/logging"
)

const usage = `usage: calengine <command> [flags]

commands:
  occurrences  list occurrences of a window with their layout
  move         change the time of an event occurrence
  drag         replay a pointer drag on an occurrence and apply it
  undo         revert the most recent undoable change`

type command func(ctx context.Context, e *engine.Engine, args []string) error

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	commands := map[string]command{
		"occurrences": runOccurrences,
		"move":        runMove,
		"drag":        runDrag,
		"undo":        runUndo,
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, cleanup, err := engine.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}

	err = cmd(ctx, e, os.Args[2:])
	cleanup()
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}
