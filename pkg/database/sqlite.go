package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ideaflow/pkg/retry"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// OpenSQLite opens (creating if needed) a SQLite database file and applies the
// connection pragmas the record store depends on.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; one connection keeps them in force and
	// serializes writers the way SQLite expects.
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	logger.Info("Opened SQLite database", zap.String("path", path))
	return db, nil
}

// RetryOnBusy retries fn while SQLite reports the database as locked.
func RetryOnBusy(ctx context.Context, fn func() error) error {
	cfg := &retry.Config{
		MaxRetries:   5,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
	err := retry.Do(ctx, cfg, func() error {
		err := fn()
		if err != nil && !isBusy(err) {
			return permanent{err}
		}
		return err
	})
	var p permanent
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// permanent stops retry.Do on errors other than SQLITE_BUSY.
type permanent struct{ err error }

func (p permanent) Error() string     { return p.err.Error() }
func (p permanent) Unwrap() error     { return p.err }
func (p permanent) IsRetryable() bool { return false }
