// Package postgres provides a Postgres-backed product store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for product rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store reads and rewrites product rows in Postgres. The row id column keeps
// the collection order stable across rewrites.
type Store struct {
	pool  pgxPool
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load reads the product collection ordered by row id.
func (s *Store) Load(ctx context.Context) ([]tag.Product, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("product store is not configured")
	}
	query := fmt.Sprintf(`
SELECT code, COALESCE(suffix, ''), current_price::text, previous_price::text
FROM %s
ORDER BY id`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []tag.Product
	for rows.Next() {
		var (
			code    string
			suffix  string
			current string
			prev    *string
		)
		if err := rows.Scan(&code, &suffix, &current, &prev); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		cur, err := tag.NewPrice(current)
		if err != nil {
			return nil, fmt.Errorf("parse current price for %s: %w", code, err)
		}
		p := tag.Product{Code: code, VariationSuffix: suffix, CurrentPrice: cur}
		if prev != nil {
			pp, err := tag.NewPrice(*prev)
			if err != nil {
				return nil, fmt.Errorf("parse previous price for %s: %w", code, err)
			}
			p.PreviousPrice = &pp
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

// Replace rewrites the table with the given collection inside one transaction.
func (s *Store) Replace(ctx context.Context, products []tag.Product) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("product store is not configured")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", s.table)); err != nil {
		return fmt.Errorf("truncate products: %w", err)
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (id, code, suffix, current_price, previous_price)
VALUES ($1, $2, $3, $4, $5)`, s.table)
	for i, p := range products {
		var prev any
		if p.PreviousPrice != nil {
			prev = p.PreviousPrice.String()
		}
		if _, err := tx.Exec(ctx, insert, i+1, p.Code, p.VariationSuffix, p.CurrentPrice.String(), prev); err != nil {
			return fmt.Errorf("insert product %s: %w", p.Code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}
