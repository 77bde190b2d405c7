package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versions() []Version {
	return []Version{
		{Activated: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Tariffs: []PlanRef{{File: "v2.yaml"}}},
		{Activated: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Tariffs: []PlanRef{{File: "v1.yaml"}}},
	}
}

func TestResolvePicksFirstActivatedBeforeEvent(t *testing.T) {
	refs, err := Resolve(versions(), time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "v2.yaml", refs[0].File)
}

func TestResolveFallsThroughToOlderVersion(t *testing.T) {
	refs, err := Resolve(versions(), time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "v1.yaml", refs[0].File)
}

func TestResolveActivationDayBoundary(t *testing.T) {
	// Midnight of the activation day itself is not strictly after it; the
	// older version still applies.
	refs, err := Resolve(versions(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "v1.yaml", refs[0].File)

	refs, err = Resolve(versions(), time.Date(2024, 6, 1, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "v2.yaml", refs[0].File)
}

func TestResolveBeforeEarliestActivation(t *testing.T) {
	_, err := Resolve(versions(), time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNoTariff)
}

func TestResolveDeterministic(t *testing.T) {
	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	first, err := Resolve(versions(), at)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Resolve(versions(), at)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestOlderVersionExists(t *testing.T) {
	vs := versions()

	older, err := OlderVersionExists(vs, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, older)

	older, err = OlderVersionExists(vs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, older)
}

func TestVersionAddedFallsBackToActivated(t *testing.T) {
	v := Version{Activated: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, v.ActivatedAt(), v.AddedAt())

	v.Added = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, v.Added, v.AddedAt())
}
