package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisegate/internal/config"
)

func TestSampler(t *testing.T) {
	tests := []struct {
		cfg  config.SamplerConfig
		want string
	}{
		{config.SamplerConfig{Type: "always_off"}, "AlwaysOffSampler"},
		{config.SamplerConfig{Type: "traceidratio", Param: 0.25}, "TraceIDRatioBased{0.25}"},
		{config.SamplerConfig{Type: "parentbased_always_on"}, "ParentBased{root:AlwaysOnSampler"},
		{config.SamplerConfig{Type: "unknown"}, "AlwaysOnSampler"},
		{config.SamplerConfig{}, "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			assert.Contains(t, Sampler(tt.cfg).Description(), tt.want)
		})
	}
}

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), config.TracingConfig{}, "ingest-service", "mqtt")
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	var nilProvider *Provider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
}
