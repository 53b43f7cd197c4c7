package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeasePolicy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		policy, err := NewLeasePolicy(40*time.Minute, 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 40*time.Minute, policy.HardTimeout())
	})

	t.Run("zero timeout", func(t *testing.T) {
		policy, err := NewLeasePolicy(0, 0)
		require.ErrorIs(t, err, ErrInvalidHardTimeout)
		assert.Nil(t, policy)
	})

	t.Run("timeout not above budget", func(t *testing.T) {
		_, err := NewLeasePolicy(30*time.Minute, 30*time.Minute)
		require.ErrorIs(t, err, ErrLeaseBelowBudget)
	})

	t.Run("unknown budget", func(t *testing.T) {
		_, err := NewLeasePolicy(time.Minute, 0)
		require.NoError(t, err)
	})
}

func TestLeasePolicy_Resolve(t *testing.T) {
	policy, err := NewLeasePolicy(40*time.Minute, 30*time.Minute)
	require.NoError(t, err)

	t.Run("zero uses hard timeout", func(t *testing.T) {
		d := policy.Resolve(0)
		assert.Equal(t, 2400, d.Seconds)
		assert.True(t, d.UsedDefault())
		assert.Equal(t, 40*time.Minute, d.Duration())
	})

	t.Run("explicit above budget", func(t *testing.T) {
		d := policy.Resolve(45 * time.Minute)
		assert.Equal(t, 2700, d.Seconds)
		assert.Equal(t, LeaseSourceExplicit, d.Source)
	})

	t.Run("at or below budget is raised", func(t *testing.T) {
		d := policy.Resolve(10 * time.Minute)
		assert.Equal(t, 2400, d.Seconds)
		assert.True(t, d.Clamped())
	})

	t.Run("negative is raised", func(t *testing.T) {
		d := policy.Resolve(-time.Second)
		assert.Equal(t, 2400, d.Seconds)
		assert.True(t, d.Clamped())
	})

	t.Run("sub-second without budget clamps to one", func(t *testing.T) {
		p, perr := NewLeasePolicy(time.Minute, 0)
		require.NoError(t, perr)
		d := p.Resolve(500 * time.Millisecond)
		assert.Equal(t, 1, d.Seconds)
		assert.True(t, d.Clamped())
	})
}
