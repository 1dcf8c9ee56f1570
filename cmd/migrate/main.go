package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

// usage: migrate [up | down N | force VERSION]
func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("migrate", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New("migrate", cfg.Env, cfg.LogLevel)

	m, err := db.NewMigrator(cfg.PostgresDSN, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create migrator")
	}

	args := flag.Args()
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down", "force":
		if len(args) < 2 {
			err = fmt.Errorf("%s needs a number", cmd)
			break
		}
		var n int
		if n, err = strconv.Atoi(args[1]); err != nil {
			err = fmt.Errorf("invalid number %q: %w", args[1], err)
			break
		}
		if cmd == "down" {
			err = m.Down(n)
		} else {
			err = m.Force(n)
		}
	default:
		_ = m.Close()
		fmt.Fprintf(os.Stderr, "unknown command %q, want up, down N or force VERSION\n", cmd)
		os.Exit(2)
	}

	if cerr := m.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("close migrator")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}
	logger.Info().Str("command", cmd).Msg("migrations complete")
}
