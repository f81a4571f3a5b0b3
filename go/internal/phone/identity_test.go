package phone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRemembersPerRoom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", identityFile)
	id := NewIdentity(path)

	_, ok, err := id.PlayerID("AB12")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, id.Remember("ab12", "p-1"))
	require.NoError(t, id.Remember("XY34", "p-2"))

	// a fresh instance reads what the last one wrote
	reopened := NewIdentity(path)
	got, ok, err := reopened.PlayerID("AB12")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p-1", got)

	require.NoError(t, reopened.Forget("AB12"))
	_, ok, err = id.PlayerID("AB12")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err = id.PlayerID("xy34")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p-2", got)
}

func TestIdentityCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), identityFile)
	require.NoError(t, os.WriteFile(path, []byte("rooms: [not, a, map"), 0o600))

	_, _, err := NewIdentity(path).PlayerID("AB12")
	assert.Error(t, err)
}
