package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"database/sql"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client is a pooled Postgres connection with migration and sentinel
// support.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the client's logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// Options bundles the pool-tuning parameters NewClient needs.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewClient opens a pooled connection to dsn and verifies it with a ping.
func NewClient(dsn string, opts Options, clientOpts ...ClientOption) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}

	c := &Client{
		logger: log.New(log.Writer(), "[Store] ", log.LstdFlags),
	}
	for _, o := range clientOpts {
		o(c)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	c.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c.logger.Printf("connected to database (max_open=%d, max_idle=%d)", maxOpen, maxIdle)
	return c, nil
}

// DB returns the underlying *sql.DB for direct access (e.g. to build a
// pq.Listener from the same DSN, or to hand to a third party helper).
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	c.logger.Println("closing database connection")
	return c.db.Close()
}

// Ping verifies the database connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// HealthStatus describes store connectivity for the /health endpoint.
type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	Error           string    `json:"error,omitempty"`
	OpenConnections int       `json:"open_connections"`
	InUse           int       `json:"in_use"`
	Idle            int       `json:"idle"`
	CheckedAt       time.Time `json:"checked_at"`
}

// Health reports the store's current health.
func (c *Client) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{CheckedAt: time.Now()}
	if err := c.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
		return status
	}
	stats := c.db.Stats()
	status.Healthy = true
	status.OpenConnections = stats.OpenConnections
	status.InUse = stats.InUse
	status.Idle = stats.Idle
	return status
}

// ============================================================================
// QUERY HELPERS (Client satisfies Querier directly, for read-only queries
// that don't need session scoping, e.g. the dashboard)
// ============================================================================

func (c *Client) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Client) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Client) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// ============================================================================
// MIGRATIONS
// ============================================================================

// Migration is a single embedded schema migration file.
type Migration struct {
	Version  string
	Filename string
	SQL      string
}

// MigrateUp applies all pending embedded migrations in version order.
func (c *Client) MigrateUp(ctx context.Context) error {
	c.logger.Println("running database migrations...")

	migrations, err := c.loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := c.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("failed to get applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		c.logger.Printf("  applying %s...", m.Version)
		if err := c.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
	}

	c.logger.Println("migrations complete")
	return nil
}

func (c *Client) loadMigrations() ([]Migration, error) {
	var migrations []Migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		version := strings.TrimSuffix(d.Name(), ".sql")
		migrations = append(migrations, Migration{Version: version, Filename: d.Name(), SQL: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (c *Client) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (c *Client) applyMigration(ctx context.Context, m Migration) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	return tx.Commit()
}

// ============================================================================
// SCHEMA / NETWORK SENTINEL CHECK
// ============================================================================

// CheckSentinels verifies the AuxiliaryData schema-version and network-name
// sentinels. On a fresh database it seeds both; a mismatch on either is
// fatal.
func (c *Client) CheckSentinels(ctx context.Context, networkName string) error {
	repo := NewAuxiliaryRepository(c)

	version, err := repo.Get(ctx, SchemaVersionKey)
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("checking schema version sentinel: %w", err)
	}
	if err == ErrNotFound {
		if err := repo.Set(ctx, SchemaVersionKey, CurrentSchemaVersion); err != nil {
			return fmt.Errorf("seeding schema version sentinel: %w", err)
		}
		if err := repo.Set(ctx, NetworkNameKey, networkName); err != nil {
			return fmt.Errorf("seeding network name sentinel: %w", err)
		}
		return nil
	}

	if version != CurrentSchemaVersion {
		return fmt.Errorf("%w: stored=%s current=%s", ErrSchemaMismatch, version, CurrentSchemaVersion)
	}

	storedNetwork, err := repo.Get(ctx, NetworkNameKey)
	if err != nil {
		return fmt.Errorf("checking network name sentinel: %w", err)
	}
	if storedNetwork != networkName {
		return fmt.Errorf("%w: stored=%s configured=%s", ErrNetworkMismatch, storedNetwork, networkName)
	}
	return nil
}
