// Package alertlog keeps a SQLite journal of fired alerts.
package alertlog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultDirPerm = 0o755
	initTimeout    = 10 * time.Second
)

// Journal records fired alerts. It is safe for concurrent use.
type Journal struct {
	db   *sql.DB
	path string
	log  logger.Logger
}

// New opens or creates the journal at path.
func New(path string, log logger.Logger) (*Journal, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("alertlog")

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	dsn := path + "?_journal=WAL&_busy_timeout=5000&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	if err := validateSchema(ctx, db, path, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", path).
		Int("schema_version", SchemaVersion).
		Msg("Alert journal opened")

	return &Journal{db: db, path: path, log: log}, nil
}

// Record stores ev.
func (j *Journal) Record(ctx context.Context, ev alert.Event) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	_, err := j.db.ExecContext(ctx, insertAlertSQL,
		ev.ID,
		ev.Key,
		ev.Metric,
		ev.Value,
		ev.Threshold,
		ev.Direction,
		ev.Message(),
		ev.Timestamp.UnixNano(),
	)
	if err != nil {
		return errFactory.WithData(ErrStorageAccess, struct {
			Phase string
			ID    string
			Error string
		}{
			Phase: "insert_alert",
			ID:    ev.ID,
			Error: err.Error(),
		})
	}

	j.log.Debug().Str("id", ev.ID).Str("key", ev.Key).Msg("Recorded alert")

	return nil
}

// Recent returns up to limit alerts, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]alert.Event, error) {
	errFactory := errors.New()

	if limit <= 0 {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, limit)
	}

	rows, err := j.db.QueryContext(ctx, recentAlertsSQL, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var events []alert.Event
	for rows.Next() {
		var (
			ev    alert.Event
			nanos int64
		)
		if err := rows.Scan(&ev.ID, &ev.Key, &ev.Metric, &ev.Value, &ev.Threshold, &ev.Direction, &nanos); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		ev.Timestamp = time.Unix(0, nanos).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return events, nil
}

// Close checkpoints the WAL and closes the database.
func (j *Journal) Close() error {
	errFactory := errors.New()

	if _, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.db.Close()
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := j.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	j.log.Info().Msg("Alert journal closed")

	return nil
}
