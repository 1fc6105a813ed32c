package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"wisegate/internal/config"
	"wisegate/internal/logger"
	"wisegate/pkg/retry"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
	Policy retry.Policy
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
		Policy: retry.StartupPolicy(),
	}
}

// PostgresDSN builds a URL DSN understood by both lib/pq and pgx.
func PostgresDSN(cfg config.PostgresConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.DBName,
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// InitRedis returns nil when no Redis host is configured.
func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	rc := dc.Config.Database.Redis
	if rc.Host == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Password: rc.Password,
		DB:       rc.DB,
	})

	err := retry.Do(ctx, dc.Policy, func() error {
		return rdb.Ping(ctx).Err()
	}, dc.onRetry("redis"))
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

// InitPostgreSQL opens the pool with the configured driver ("postgres" for
// lib/pq, "pgx" for pgx stdlib) and waits for the server to answer.
func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	pc := dc.Config.Database.Postgres

	db, err := sql.Open(pc.Driver, PostgresDSN(pc))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if pc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pc.MaxOpenConns)
		db.SetMaxIdleConns(pc.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = retry.Do(ctx, dc.Policy, func() error {
		if err := db.PingContext(ctx); err != nil {
			if isAuthFailure(err) {
				return retry.Fatal(err)
			}
			return err
		}
		return nil
	}, dc.onRetry("postgresql"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dc.Logger.Infow("PostgreSQL connected successfully", "driver", pc.Driver, "host", pc.Host, "dbname", pc.DBName)
	return db, nil
}

// isAuthFailure reports SQLSTATE class 28 (invalid authorization).
func isAuthFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "28")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "28")
	}
	return false
}

func (dc *DatabaseConnector) onRetry(name string) func(int, error, time.Duration) {
	return func(attempt int, err error, next time.Duration) {
		dc.Logger.Warnw("Dependency not ready, retrying",
			"dependency", name,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	}
}

func (dc *DatabaseConnector) ShutdownDatabases(redis *redis.Client, postgres *sql.DB) []error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if postgres != nil {
		if err := postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	return errs
}
