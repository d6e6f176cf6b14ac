// Package marketdata is the concrete Market Data Provider named in
// SPEC_FULL.md's domain stack: a Postgres-backed historical bar repository
// fronted by a Redis read-through cache, implementing the Price & Calendar
// Source, Beta provider, and Index Membership provider interfaces the
// simulation core treats as an external collaborator. Grounded on the
// project's former database.DB (pgxpool connection setup, migration list,
// health check) retargeted from trade/order/signal tables to the
// historical-bar/beta/membership schema this domain needs.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dcasim/internal/dca"
	"dcasim/internal/dca/simerrors"
	"dcasim/internal/logging"
)

// PostgresConfig holds the connection parameters for the bar repository.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Store wraps the pgxpool.Pool backing the daily_bars, betas and
// index_membership tables.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore opens a connection pool and verifies connectivity.
func NewStore(cfg PostgresConfig) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse market data store config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create market data connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping market data store: %w", err)
	}

	logging.Default().Info("connected to market data store", "database", cfg.Database)

	return &Store{Pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
		logging.Default().Info("market data store connection closed")
	}
}

// HealthCheck pings the pool.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// RunMigrations creates the daily_bars, betas and index_membership tables
// if they do not already exist.
func (s *Store) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS daily_bars (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			bar_date DATE NOT NULL,
			open DECIMAL(20, 8) NOT NULL,
			high DECIMAL(20, 8) NOT NULL,
			low DECIMAL(20, 8) NOT NULL,
			close DECIMAL(20, 8) NOT NULL,
			adj_close DECIMAL(20, 8) NOT NULL,
			volume DECIMAL(30, 8) NOT NULL,
			UNIQUE(symbol, bar_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_bars_symbol_date ON daily_bars(symbol, bar_date)`,

		`CREATE TABLE IF NOT EXISTS betas (
			symbol VARCHAR(20) PRIMARY KEY,
			value DECIMAL(10, 6) NOT NULL,
			is_manual_override BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS index_membership (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			add_date DATE NOT NULL,
			remove_date DATE,
			UNIQUE(symbol, add_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_index_membership_symbol ON index_membership(symbol)`,
	}

	for i, m := range migrations {
		if _, err := s.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("market data migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// QueryBars reads the closed interval [start, end] of daily bars for symbol,
// strictly date-ordered.
func (s *Store) QueryBars(ctx context.Context, symbol string, start, end time.Time) ([]dca.Bar, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT bar_date, open, high, low, close, adj_close, volume
		FROM daily_bars
		WHERE symbol = $1 AND bar_date BETWEEN $2 AND $3
		ORDER BY bar_date ASC`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []dca.Bar
	for rows.Next() {
		var b dca.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row for %s: %w", symbol, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, simerrors.ErrNoOverlappingBars
	}
	return bars, nil
}

// QueryBeta reads the current beta row for symbol. Returns nil, nil when no
// row exists -- absence of a beta is not an error, callers fall back to
// unscaled parameters.
func (s *Store) QueryBeta(ctx context.Context, symbol string) (*dca.Beta, error) {
	row := s.Pool.QueryRow(ctx, `SELECT value, is_manual_override FROM betas WHERE symbol = $1`, symbol)
	var b dca.Beta
	if err := row.Scan(&b.Value, &b.IsManualOverride); err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("query beta for %s: %w", symbol, err)
	}
	return &b, nil
}

// QueryMembership reads every index-constituency window recorded for
// symbol, ordered by addDate.
func (s *Store) QueryMembership(ctx context.Context, symbol string) ([]dca.IndexMembership, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT add_date, remove_date FROM index_membership
		WHERE symbol = $1 ORDER BY add_date ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query membership for %s: %w", symbol, err)
	}
	defer rows.Close()

	var windows []dca.IndexMembership
	for rows.Next() {
		var w dca.IndexMembership
		if err := rows.Scan(&w.AddDate, &w.RemoveDate); err != nil {
			return nil, fmt.Errorf("scan membership row for %s: %w", symbol, err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}
