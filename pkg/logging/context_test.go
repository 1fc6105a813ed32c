package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithMessageID(ctx, "m-1")
	ctx = WithTopic(ctx, "data/device_id")
	ctx = WithServiceName(ctx, "ingest-service")

	assert.Equal(t, []interface{}{
		"message_id", "m-1",
		"topic", "data/device_id",
		"service_name", "ingest-service",
	}, GetLogFields(ctx))
}
