package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/esg-pipeline/internal/domain/model"
	"github.com/target/esg-pipeline/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestLock_AcquireRelease(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	lock := NewLock(client, "test:lock:")
	ctx := context.Background()

	token, ok, err := lock.Acquire(ctx, "pay_123", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = lock.Acquire(ctx, "pay_123", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder is rejected")

	// wrong token does not release
	require.NoError(t, lock.Release(ctx, "pay_123", "not-the-token"))
	_, ok, err = lock.Acquire(ctx, "pay_123", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "pay_123", token))
	_, ok, err = lock.Acquire(ctx, "pay_123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Expires(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	lock := NewLock(client, "test:lock:")
	ctx := context.Background()

	_, ok, err := lock.Acquire(ctx, "short", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, err := lock.Acquire(ctx, "short", time.Minute)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond)
}

func TestLock_EmptyKey(t *testing.T) {
	lock := NewLock(nil, "")
	_, _, err := lock.Acquire(context.Background(), "", time.Second)
	assert.Error(t, err)
}

func TestStatusRelay_RoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	// channels are global across logical DBs
	relay := NewStatusRelay(client, "test:status:"+uuid.NewString(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan model.StatusUpdate, 1)
	done := make(chan error, 1)
	go func() {
		done <- relay.Run(ctx, func(u model.StatusUpdate) { got <- u })
	}()

	update := model.Analysis{
		ID:             "a-1",
		OrganizationID: "o-1",
		Status:         model.AnalysisStatusFailed,
		PaymentStatus:  model.PaymentStatusCompleted,
	}
	// Publish until the subscription is live.
	require.Eventually(t, func() bool {
		relay.Publish(ctx, update.Snapshot())
		select {
		case u := <-got:
			assert.Equal(t, "a-1", u.AnalysisID)
			assert.Equal(t, model.AnalysisStatusFailed, u.Status)
			require.NotNil(t, u.PaymentStatus)
			assert.Equal(t, model.PaymentStatusCompleted, *u.PaymentStatus)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
