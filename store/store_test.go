package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chimerakang/portal-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	tok, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, m.Save(ctx, "t1"))
	tok, _ = m.Load(ctx)
	assert.Equal(t, "t1", tok)

	require.NoError(t, m.Clear(ctx))
	tok, _ = m.Load(ctx)
	assert.Empty(t, tok)
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	f := store.NewFile(path)

	require.NoError(t, f.Save(ctx, "abc"))

	tok, err := store.NewFile(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"authToken":"abc"}`, string(raw))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_MissingFile(t *testing.T) {
	f := store.NewFile(filepath.Join(t.TempDir(), "absent.json"))

	tok, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.NoError(t, f.Clear(context.Background()))
}

func TestFile_ClearKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"theme":"dark","tok":"x"}`), 0o600))

	f := store.NewFile(path, store.WithKey("tok"))
	tok, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", tok)

	require.NoError(t, f.Clear(ctx))
	raw, _ := os.ReadFile(path)
	assert.JSONEq(t, `{"theme":"dark"}`, string(raw))
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	ctx := context.Background()
	f := store.NewFile(path)
	_, err := f.Load(ctx)
	assert.ErrorIs(t, err, store.ErrCorrupt)
	assert.ErrorIs(t, f.Save(ctx, "tok"), store.ErrCorrupt)

	require.NoError(t, f.Clear(ctx))
	tok, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
	require.NoError(t, f.Save(ctx, "tok"))
}
