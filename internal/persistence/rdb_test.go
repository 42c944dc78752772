package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emberkv/ember/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRDBSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")
	rdb := NewRDB(path, zap.NewNop())

	src := store.NewDatabase(1000)
	src.Set("k1", []byte("v1"))
	src.HSet("h", "f", []byte("w"))
	src.Expire("k1", 3600)

	require.NoError(t, rdb.Save(src))

	// The temp file must not survive the rename.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	dst := store.NewDatabase(1000)
	require.NoError(t, rdb.Load(dst))

	v, ok, err := dst.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))

	hv, ok, err := dst.HGet("h", "f")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "w", string(hv))

	ttl := dst.TTL("k1")
	assert.GreaterOrEqual(t, ttl, int64(3599))
	assert.LessOrEqual(t, ttl, int64(3600))
}

func TestRDBLoadMissingFile(t *testing.T) {
	rdb := NewRDB(filepath.Join(t.TempDir(), "absent.rdb"), zap.NewNop())

	err := rdb.Load(store.NewDatabase(100))
	assert.Error(t, err)
}
