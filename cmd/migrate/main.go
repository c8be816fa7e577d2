package main

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/ldaa/internal/config"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "LDAA_DB_DSN"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply ldaa database schema migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "database URL (default $"+envDSN+", then the service database config)")

	run := func(fn func(m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			url, err := resolveDSN(dsn)
			if err != nil {
				return err
			}
			m, err := newMigrator(url)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(m, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all up migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrate.Migrate, _ []string) error {
				if err := ignoreNoChange(m.Up()); err != nil {
					return fmt.Errorf("run up migrations: %w", err)
				}
				fmt.Println("migrations applied successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Run all down migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrate.Migrate, _ []string) error {
				if err := ignoreNoChange(m.Down()); err != nil {
					return fmt.Errorf("run down migrations: %w", err)
				}
				fmt.Println("migrations reverted successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations (positive=up, negative=down)",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(m *migrate.Migrate, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n == 0 {
					return fmt.Errorf("steps must be a non-zero integer: %q", args[0])
				}
				if err := ignoreNoChange(m.Steps(n)); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				fmt.Printf("applied %d migration steps\n", n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrate.Migrate, _ []string) error {
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Println("version: none")
					return nil
				}
				if err != nil {
					return fmt.Errorf("get version: %w", err)
				}
				fmt.Printf("version: %d, dirty: %v\n", v, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Force set the migration version (use with caution)",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(m *migrate.Migrate, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				if err := m.Force(v); err != nil {
					return fmt.Errorf("force version: %w", err)
				}
				fmt.Printf("forced to version %d\n", v)
				return nil
			}),
		},
	)

	return root
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// resolveDSN prefers the --dsn flag, then $LDAA_DB_DSN, then the database
// section of the service configuration.
func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load database config: %w", err)
	}
	return cfg.Database.URL(), nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
