// Package sqlstore is the persistence gateway: parameterized SQL over sqlx,
// against Postgres (lib/pq) or SQLite (modernc.org/sqlite).
// It implements port.UserStore, port.ProfileStore and port.ChatStore.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"
	"github.com/boddenberg/bazchat-go/internal/infra/resilience"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlstore")

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Options configures the connection pool and read retries.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retry           resilience.Config
}

// Gateway wraps a pooled *sqlx.DB with a circuit breaker, read retries,
// tracing and metrics.
type Gateway struct {
	db      *sqlx.DB
	driver  string
	cb      *gobreaker.CircuitBreaker
	retry   resilience.Config
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, opts Options, metrics *observability.Metrics, logger *zap.Logger) (*Gateway, error) {
	switch opts.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if opts.DSN == "" {
		return nil, errors.New("database DSN is empty")
	}

	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	if opts.Driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	return New(db, opts.Driver, opts.Retry, metrics, logger), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB, driver string, retry resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Gateway {
	retry.ShouldRetry = isRetryable
	return &Gateway{
		db:      db,
		driver:  driver,
		cb:      resilience.NewCircuitBreaker("database", domain.IsExpected),
		retry:   retry,
		metrics: metrics,
		logger:  logger,
	}
}

// DB exposes the underlying pool.
func (g *Gateway) DB() *sqlx.DB { return g.db }

// Driver returns the driver name.
func (g *Gateway) Driver() string { return g.driver }

// Ping implements port.HealthChecker.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// Close closes the pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// read runs a query under the circuit breaker, retrying transient failures.
func (g *Gateway) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	_, err := g.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, g.retry, func() error {
			return fn(ctx)
		})
	})
	return g.finish(op, start, err)
}

// write runs a statement under the circuit breaker. Writes are never retried.
func (g *Gateway) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	_, err := g.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return g.finish(op, start, err)
}

func (g *Gateway) finish(op string, start time.Time, err error) error {
	g.metrics.RecordRequestDuration("db."+op, time.Since(start))
	if err == nil || domain.IsExpected(err) {
		return err
	}

	g.metrics.IncrExternalError("database")
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Warn("database circuit open", zap.String("op", op))
		return &domain.ErrCircuitOpen{Service: "database"}
	}
	g.logger.Error("database operation failed", zap.String("op", op), zap.Error(err))
	return &domain.ErrExternalService{Service: "database/" + op, Err: err}
}

func isRetryable(err error) bool {
	if domain.IsExpected(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (g *Gateway) rebind(query string) string {
	return g.db.Rebind(query)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
