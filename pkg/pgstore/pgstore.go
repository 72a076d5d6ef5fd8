// Package pgstore persists the scheduling engine's state in Postgres. The
// events table carries an exclusion constraint over
// (consultant_id, tstzrange(start_at, end_at)) for non-cancelled rows, the
// real overlap guarantee behind the engine's advisory pre-flight check.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"

	"github.com/avelichko/consulta/pkg/metrics"
	"github.com/avelichko/consulta/pkg/models"
)

//go:embed migrations
var migrations embed.FS

const retries = 3

var (
	ErrEventNotFound    = fmt.Errorf("event %w", models.ErrNotFound)
	ErrAttendeeNotFound = fmt.Errorf("attendee %w", models.ErrNotFound)
	ErrRequestNotFound  = fmt.Errorf("change request %w", models.ErrNotFound)
)

type Store struct {
	log *logrus.Entry
	db  *sqlx.DB
}

func NewStore(ctx context.Context, log *logrus.Logger, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		log: log.WithField("component", "pgstore"),
		db:  db,
	}, nil
}

func (s *Store) Migrate(direction migrate.MigrationDirection) error {
	assetDir := func() func(string) ([]string, error) {
		return func(path string) ([]string, error) {
			dirEntry, er := migrations.ReadDir(path)
			if er != nil {
				return nil, er
			}
			entries := make([]string, 0)
			for _, e := range dirEntry {
				entries = append(entries, e.Name())
			}

			return entries, nil
		}
	}()
	asset := migrate.AssetMigrationSource{
		Asset:    migrations.ReadFile,
		AssetDir: assetDir,
		Dir:      "migrations",
	}
	_, err := migrate.Exec(s.db.DB, "postgres", asset, direction)
	return err
}

// inTx runs fn inside one transaction, rolling back on any error.
func (s *Store) inTx(ctx context.Context, method string, fn func(tx *sqlx.Tx) error) error {
	started := time.Now()
	err := func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()
		if err = fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	}()
	metrics.PgDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.PgErrCount.WithLabelValues(method).Inc()
	}
	return err
}

// asConflict translates a violation of the events_no_overlap exclusion
// constraint (the losing side of a check-then-write race) into the same
// conflict error the pre-flight check reports, so callers have one
// handling path.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "events_no_overlap" {
		return fmt.Errorf("%w: %s", models.ErrSchedulingConflict, pgErr.Message)
	}
	return err
}
