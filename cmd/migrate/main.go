package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/vip-booking/config"
	"github.com/jwalitptl/vip-booking/internal/repository/postgres"
	"github.com/jwalitptl/vip-booking/migrations"
	"github.com/jwalitptl/vip-booking/pkg/logger"
)

const usage = "usage: migrate [up|down|version|force <version>]"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	if !cfg.UseDatabase() {
		lg.Fatal(errors.New("database host is not configured"), "nothing to migrate")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		lg.Fatal(err, "failed to create migration driver")
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		lg.Fatal(err, "failed to open embedded migrations")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		lg.Fatal(err, "failed to create migrator")
	}

	cmd, args := "up", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	if err := run(m, cmd, args); err != nil {
		lg.Fatal(err, "migration failed", "command", cmd)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		lg.Info("database has no migrations applied")
	case err != nil:
		lg.Error(err, "failed to read migration version")
	default:
		lg.Info("migrations complete", "command", cmd, "version", version, "dirty", dirty)
	}
}

func run(m *migrate.Migrate, cmd string, args []string) error {
	switch cmd {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Steps(-1))
	case "version":
		return nil
	case "force":
		if len(args) != 1 {
			return errors.New(usage)
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return m.Force(v)
	default:
		return fmt.Errorf("unknown command %q: %s", cmd, usage)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
