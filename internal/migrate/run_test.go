package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions_SortedAndEmbedded(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_init", versions[0])
	assert.IsIncreasing(t, versions)

	for _, v := range versions {
		body, err := migrationsFS.ReadFile("migrations/" + v + ".sql")
		require.NoError(t, err)
		assert.NotEmpty(t, body, v)
	}
}

func TestMerge(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := merge([]string{"0001_init", "0002_more"}, map[string]time.Time{
		"0001_init":    at,
		"0000_removed": at,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Applied())
	assert.Equal(t, at, *got[0].AppliedAt)
	assert.Equal(t, "0002_more", got[1].Name)
	assert.False(t, got[1].Applied())
}

func TestMerge_DefaultsToEmbedded(t *testing.T) {
	got, err := merge(nil, nil)
	require.NoError(t, err)

	versions, err := Versions()
	require.NoError(t, err)
	require.Len(t, got, len(versions))
	for _, v := range got {
		assert.False(t, v.Applied())
	}
}
