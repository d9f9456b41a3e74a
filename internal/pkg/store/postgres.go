package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"go.uber.org/zap"
)

// DBExecutor is the subset of *pgxpool.Pool the mirror needs.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS rates;

CREATE TABLE IF NOT EXISTS rates.product_current (
	product       TEXT PRIMARY KEY,
	current_rate  DOUBLE PRECISION NOT NULL,
	current_since DATE NOT NULL,
	mirrored_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rates.product_history (
	product        TEXT NOT NULL,
	effective_date DATE NOT NULL,
	rate           DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (product, effective_date)
);`

const upsertCurrentSQL = `
INSERT INTO rates.product_current (product, current_rate, current_since, mirrored_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (product) DO UPDATE
SET current_rate = EXCLUDED.current_rate,
    current_since = EXCLUDED.current_since,
    mirrored_at = EXCLUDED.mirrored_at`

// same-day corrections overwrite, like in the JSON history
const upsertHistorySQL = `
INSERT INTO rates.product_history (product, effective_date, rate)
VALUES ($1, $2, $3)
ON CONFLICT (product, effective_date) DO UPDATE
SET rate = EXCLUDED.rate`

// Postgres mirrors changed product records into SQL tables. The JSON document stays the source of truth.
type Postgres struct {
	db     DBExecutor
	logger *zap.Logger
}

// NewPostgres returns a mirror writing through db. A nil db disables mirroring.
func NewPostgres(db DBExecutor, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// ConnectPostgres opens a pool and makes sure the mirror tables exist.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *zap.Logger) (*Postgres, *pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, &model.PersistenceError{Target: "postgres", Err: fmt.Errorf("failed to connect: %w", err)}
	}

	pg := NewPostgres(pool, logger)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p.db == nil {
		return nil
	}
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return &model.PersistenceError{Target: "postgres", Err: fmt.Errorf("failed to create schema: %w", err)}
	}
	return nil
}

// MirrorProduct upserts the product's current state and its latest history entry.
func (p *Postgres) MirrorProduct(ctx context.Context, product model.ProductID, rate *model.ProductRate) error {
	if p.db == nil {
		return nil
	}

	if _, err := p.db.Exec(ctx, upsertCurrentSQL, string(product), rate.CurrentRate, dateOf(rate.CurrentSince)); err != nil {
		return &model.PersistenceError{Target: "postgres", Err: fmt.Errorf("failed to upsert current rate of %s: %w", product, err)}
	}

	if n := len(rate.History); n > 0 {
		last := rate.History[n-1]
		if _, err := p.db.Exec(ctx, upsertHistorySQL, string(product), dateOf(last.Date), last.Rate); err != nil {
			return &model.PersistenceError{Target: "postgres", Err: fmt.Errorf("failed to upsert history of %s: %w", product, err)}
		}
	}

	p.logger.Debug("mirrored product rate", zap.String("product", string(product)), zap.Float64("rate", rate.CurrentRate))
	return nil
}

func dateOf(d civil.Date) time.Time {
	return d.In(time.UTC)
}
