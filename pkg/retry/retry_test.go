package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int

	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("connection refused")
		}
		return nil
	}, func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return fmt.Errorf("down")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_FatalStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		return Fatal(fmt.Errorf("bad credentials"))
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastPolicy(5), func() error {
		return fmt.Errorf("down")
	}, nil)
	require.Error(t, err)
}
