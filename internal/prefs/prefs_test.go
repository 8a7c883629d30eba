package prefs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southflowpeak/pin/pkg/types"
)

func TestLoadOpacityDefaultsWhenAbsent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultOpacity, store.LoadOpacity())
}

func TestSaveAndLoadOpacityRoundTrips(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SaveOpacity(0.42))
	assert.InDelta(t, 0.42, float64(store.LoadOpacity()), 1e-9)
}

func TestSaveOpacityClamps(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SaveOpacity(5))
	assert.Equal(t, types.MaxOpacity, store.LoadOpacity())
}

func TestLoadOpacityTreatsZeroKeyAsDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	// A preferences file present but with the key unset (zero value)
	// must read back as the 1.0 default, per spec, not as the 0.1 floor
	// a real clamp of 0 would produce.
	require.NoError(t, os.WriteFile(store.path, []byte("MirrorOpacity = 0.0\n"), 0o644))
	assert.Equal(t, types.DefaultOpacity, store.LoadOpacity())
}
