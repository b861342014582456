package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "tokens.json")
	r, err := New(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())

	added, err := r.Register(" tok-a ", "Chrome")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = r.Register("tok-a", "Firefox")
	require.NoError(t, err)
	assert.False(t, added, "duplicate token")
	_, err = r.Register("   ", "")
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = r.Register("tok-b", "")
	require.NoError(t, err)
	_, err = r.Register("tok-c", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-b", "tok-c"}, r.Tokens())

	n, err := r.Remove("tok-b", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"tok-a", "tok-c"}, r.Tokens())

	n, err = r.Remove("unknown")
	require.NoError(t, err)
	assert.Zero(t, n)

	reloaded, err := New(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-c"}, reloaded.Tokens())
}

func TestRegistry_InMemory(t *testing.T) {
	r, err := New("", nil)
	require.NoError(t, err)
	_, err = r.Register("tok", "")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := New(path, nil)
	assert.Error(t, err)
}

func TestRegistry_RegisterSaveFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	r, err := New(filepath.Join(dir, "tokens.json"), nil)
	require.NoError(t, err)

	// A regular file where the parent directory should be makes every save fail.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	r.filePath = filepath.Join(blocker, "tokens.json")

	added, err := r.Register("tok-a", "Chrome")
	require.Error(t, err)
	assert.False(t, added)
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Tokens())

	r.filePath = filepath.Join(dir, "tokens.json")
	added, err = r.Register("tok-a", "Chrome")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"tok-a"}, r.Tokens())
}

func TestRegistry_Concurrent(t *testing.T) {
	r, err := New(filepath.Join(t.TempDir(), "tokens.json"), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Register(string(rune('a'+i)), "")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, r.Len())
}
