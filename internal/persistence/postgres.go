package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/config"
	"github.com/support-relay/relay/internal/domain"
)

// Postgres stores ticket records as JSONB rows keyed by ticket id.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool and applies migrations when enabled.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("POSTGRES_DSN not provided")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to postgres")

	pg := &Postgres{Pool: pool}
	if cfg.RunMigrations {
		exec := func(ctx context.Context, script string) error {
			_, err := pool.Exec(ctx, script)
			return err
		}
		if err := RunMigrations(ctx, "postgres", exec, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pg, nil
}

// LoadTickets reads every ticket record.
func (p *Postgres) LoadTickets(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := p.Pool.Query(ctx, `SELECT record FROM support_tickets ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t domain.Ticket
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode ticket record: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const upsertTicketQuery = `
        INSERT INTO support_tickets (id, created_at, status, record)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, record = EXCLUDED.record, updated_at = NOW()`

// SaveTickets upserts each ticket in its own statement. A batch would share
// one implicit transaction, letting a single rejected record undo the rest.
func (p *Postgres) SaveTickets(ctx context.Context, tickets []domain.Ticket) error {
	return saveTickets(ctx, p.Pool, tickets)
}

func saveTickets(ctx context.Context, db execer, tickets []domain.Ticket) error {
	var errs []error
	for i := range tickets {
		raw, err := json.Marshal(tickets[i])
		if err != nil {
			errs = append(errs, &RecordError{ID: tickets[i].ID, Err: fmt.Errorf("encode: %w", err)})
			continue
		}
		if _, err := db.Exec(ctx, upsertTicketQuery, tickets[i].ID, tickets[i].CreatedAt, string(tickets[i].Status), string(raw)); err != nil {
			errs = append(errs, &RecordError{ID: tickets[i].ID, Err: fmt.Errorf("upsert: %w", err)})
		}
	}
	return errors.Join(errs...)
}

// LoadModerators reads every moderator identity.
func (p *Postgres) LoadModerators(ctx context.Context) ([]domain.Moderator, error) {
	rows, err := p.Pool.Query(ctx, `SELECT id, display_name FROM support_moderators ORDER BY id`)
	if err != nil {
		return nil, err
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

// SaveModerators upserts all identities in one transaction.
func (p *Postgres) SaveModerators(ctx context.Context, moderators []domain.Moderator) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO support_moderators (id, display_name) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`
	for _, m := range moderators {
		if _, err := tx.Exec(ctx, query, m.ID, m.DisplayName); err != nil {
			return fmt.Errorf("upsert moderator %s: %w", m.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres pool not configured")
	}
	return p.Pool.Ping(ctx)
}

// Close releases pool resources.
func (p *Postgres) Close() error {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
	return nil
}
