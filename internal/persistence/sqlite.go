package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/support-relay/relay/internal/domain"
)

// SQLiteStore keeps one row per ticket in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPerms); err != nil {
			return nil, fmt.Errorf("sqlite store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between concurrent flushes
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: wal: %w", err)
	}

	exec := func(ctx context.Context, script string) error {
		_, err := db.ExecContext(ctx, script)
		return err
	}
	if err := RunMigrations(ctx, "sqlite", exec, logger); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadTickets(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM support_tickets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: load tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t domain.Ticket
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("sqlite store: decode ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// SaveTickets upserts each ticket in its own statement so one bad record
// does not roll back the others.
func (s *SQLiteStore) SaveTickets(ctx context.Context, tickets []domain.Ticket) error {
	var errs []error
	for i := range tickets {
		raw, err := json.Marshal(tickets[i])
		if err != nil {
			errs = append(errs, &RecordError{ID: tickets[i].ID, Err: fmt.Errorf("encode: %w", err)})
			continue
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO support_tickets (id, created_at, status, record)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status=excluded.status, record=excluded.record, updated_at=CURRENT_TIMESTAMP
		`, tickets[i].ID, tickets[i].CreatedAt, string(tickets[i].Status), string(raw))
		if err != nil {
			errs = append(errs, &RecordError{ID: tickets[i].ID, Err: fmt.Errorf("sqlite store: %w", err)})
		}
	}
	return errors.Join(errs...)
}

func (s *SQLiteStore) LoadModerators(ctx context.Context) ([]domain.Moderator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, display_name FROM support_moderators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: load moderators: %w", err)
	}
	defer rows.Close()

	var mods []domain.Moderator
	for rows.Next() {
		var m domain.Moderator
		if err := rows.Scan(&m.ID, &m.DisplayName); err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

func (s *SQLiteStore) SaveModerators(ctx context.Context, moderators []domain.Moderator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, m := range moderators {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO support_moderators (id, display_name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET display_name=excluded.display_name
		`, m.ID, m.DisplayName)
		if err != nil {
			return fmt.Errorf("sqlite store: save moderator %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
