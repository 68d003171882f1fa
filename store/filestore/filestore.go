// Package filestore persists lane cursors as one JSON file per key under
// a directory, typically `<home>/state`. It is the default backend for
// single-instance deployments.
package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/store"
)

type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ store.KV = (*FileStore)(nil)

func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create state directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(key string) string {
	// lane ids are 0x-prefixed hex; strip the prefix for a cleaner file name
	return filepath.Join(fs.dir, strings.TrimPrefix(key, "0x")+".json")
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	bz, err := os.ReadFile(fs.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read state file for %s", key)
	}
	return bz, true, nil
}

func (fs *FileStore) Put(_ context.Context, key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	// write-then-rename so that a crash never leaves a truncated state file
	tmp, err := os.CreateTemp(fs.dir, "state-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary state file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write state file for %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close state file for %s", key)
	}
	if err := os.Rename(tmp.Name(), fs.path(key)); err != nil {
		return errors.Wrapf(err, "failed to replace state file for %s", key)
	}
	return nil
}

func (fs *FileStore) Close() error {
	return nil
}
