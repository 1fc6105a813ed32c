package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type registered struct {
	checker  Checker
	optional bool
}

type CheckerRegistry struct {
	checkers []registered
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]registered, 0),
	}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, registered{checker: checker})
}

// RegisterOptional adds a checker whose failure degrades the service
// instead of marking it unhealthy.
func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.checkers = append(r.checkers, registered{checker: checker, optional: true})
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	allHealthy := true
	anyDegraded := false

	for _, entry := range r.checkers {
		err := entry.checker.Check(ctx)
		result := CheckResult{
			Timestamp: time.Now(),
		}

		switch {
		case err == nil:
			result.Status = StatusHealthy
		case entry.optional:
			result.Status = StatusDegraded
			result.Message = err.Error()
			anyDegraded = true
		default:
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			allHealthy = false
		}

		results[entry.checker.Name()] = result
	}

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	} else if anyDegraded {
		overallStatus = StatusDegraded
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

type PostgreSQLChecker struct {
	db *sql.DB
}

func NewPostgreSQLChecker(db *sql.DB) *PostgreSQLChecker {
	return &PostgreSQLChecker{db: db}
}

func (c *PostgreSQLChecker) Name() string {
	return "postgresql"
}

func (c *PostgreSQLChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	return nil
}

type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// ConnectionState is implemented by bus consumers.
type ConnectionState interface {
	IsConnected() bool
}

type BusChecker struct {
	name  string
	state ConnectionState
}

func NewBusChecker(name string, state ConnectionState) *BusChecker {
	return &BusChecker{name: name, state: state}
}

func (c *BusChecker) Name() string {
	return c.name
}

func (c *BusChecker) Check(_ context.Context) error {
	if !c.state.IsConnected() {
		return fmt.Errorf("%s is not connected", c.name)
	}
	return nil
}
