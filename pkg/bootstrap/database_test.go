package bootstrap

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"wisegate/internal/config"
	"wisegate/internal/logger"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host: "db", Port: 5432, User: "ingest", Password: "p@ss/word", DBName: "iot", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://ingest:p%40ss%2Fword@db:5432/iot?sslmode=disable", dsn)
}

func TestInitRedis_NotConfigured(t *testing.T) {
	dc := NewDatabaseConnector(&config.Config{}, logger.NopLogger())
	rdb, err := dc.InitRedis(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestBase_InitBroker(t *testing.T) {
	b := NewBase(&config.Config{Broker: config.BrokerConfig{Type: "mqtt"}}, logger.NopLogger())
	assert.NoError(t, b.InitBroker("ingest-service"))
	assert.NotNil(t, b.Consumer)
	assert.Nil(t, b.Producer)
	assert.Empty(t, b.ShutdownBroker())

	b = NewBase(&config.Config{Broker: config.BrokerConfig{Type: "nats"}}, logger.NopLogger())
	assert.Error(t, b.InitBroker(""))
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, isAuthFailure(&pq.Error{Code: "28P01"}))
	assert.True(t, isAuthFailure(fmt.Errorf("ping: %w", &pgconn.PgError{Code: "28000"})))
	assert.False(t, isAuthFailure(&pq.Error{Code: "57P03"}))
	assert.False(t, isAuthFailure(fmt.Errorf("dial tcp: connection refused")))
}
