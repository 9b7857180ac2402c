package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/vidfriends/uploader/internal/config"
	"github.com/vidfriends/uploader/internal/db"
	"github.com/vidfriends/uploader/internal/repositories"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|status|down]",
		Short:     "Manage the upload ledger schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "status", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command = args[0]
			}
			return runMigrations(cmd.Context(), opts.configPath, command, cmd.OutOrStdout())
		},
	}
}

func runMigrations(ctx context.Context, configPath, command string, out io.Writer) error {
	switch command {
	case "up", "status", "down":
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("database_url is required to run migrations")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sqlDB := db.SQL(pool)
	defer sqlDB.Close()

	migrator, err := repositories.NewMigrator(sqlDB)
	if err != nil {
		return err
	}

	switch command {
	case "status":
		states, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range states {
			mark := " "
			if s.Applied {
				mark = "x"
			}
			fmt.Fprintf(out, "[%s] %s\n", mark, s.Source)
		}
		return nil
	case "down":
		var source string
		err := withMigrationRetry(ctx, "down", out, func() error {
			var err error
			source, err = migrator.Down(ctx)
			return err
		})
		if err != nil {
			return err
		}
		if source == "" {
			fmt.Fprintln(out, "no migrations to roll back")
			return nil
		}
		fmt.Fprintf(out, "rolled back migration %s\n", source)
		return nil
	default:
		var applied []string
		err := withMigrationRetry(ctx, "up", out, func() error {
			var err error
			applied, err = migrator.Up(ctx)
			return err
		})
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(out, "no migrations to apply")
			return nil
		}
		for _, source := range applied {
			fmt.Fprintf(out, "applied migration %s\n", source)
		}
		return nil
	}
}

// withMigrationRetry reruns fn on transient database errors with capped
// exponential backoff. Each goose migration runs in its own transaction, so a
// failed attempt leaves nothing half applied.
func withMigrationRetry(ctx context.Context, name string, out io.Writer, fn func() error) error {
	backoff := retry.NewExponential(migrationBaseBackoff)
	backoff = retry.WithCappedDuration(migrationMaxBackoff, backoff)
	backoff = retry.WithMaxRetries(migrationMaxRetries-1, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn()
		if err == nil || !shouldRetryMigration(err) {
			return err
		}
		fmt.Fprintf(out, "transient error running migrate %s (attempt %d/%d): %v\n", name, attempt, migrationMaxRetries, err)
		return retry.RetryableError(err)
	})
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}

	return false
}
