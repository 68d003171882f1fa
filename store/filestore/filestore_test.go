package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperledger-labs/lane-relayer/store/filestore"
	"github.com/stretchr/testify/require"
)

func TestGetMissing(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	require.NoError(t, err)

	_, found, err := fs.Get(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPutGetRoundTrip(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Put(ctx, "0xdeadbeef", []byte(`{"delivered_nonce":5}`)))

	bz, found, err := fs.Get(ctx, "0xdeadbeef")
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, `{"delivered_nonce":5}`, string(bz))
}

func TestPutOverwrites(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Put(ctx, "0x00000001", []byte("a")))
	require.NoError(t, fs.Put(ctx, "0x00000001", []byte("b")))

	bz, found, err := fs.Get(ctx, "0x00000001")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "b", string(bz))
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	fs, err := filestore.New(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Put(context.Background(), "0x00000001", []byte("a")))

	matches, err := filepath.Glob(filepath.Join(dir, "state-*.tmp"))
	require.NoError(t, err)
	require.Empty(t, matches)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "00000001.json", entries[0].Name())
}
