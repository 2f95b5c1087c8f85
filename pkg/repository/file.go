package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// File stores the snapshot as a pretty-printed JSON file
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Location() string {
	return f.path
}

// Close is a no-op; a file holds no client
func (f *File) Close() error {
	return nil
}

func (f *File) Load(ctx context.Context) (model.Transcript, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to read snapshot", goerr.V("path", f.path))
	}

	transcript, err := decode(data, f.path)
	if err != nil {
		return nil, false, err
	}
	return transcript, true, nil
}

// Save writes into a temporary file in the same directory and renames it
// over the target, so a crash never leaves a truncated snapshot behind.
func (f *File) Save(ctx context.Context, transcript model.Transcript) error {
	data, err := encode(transcript)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary file", goerr.V("dir", dir))
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to write snapshot", goerr.V("path", tmpName))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to sync snapshot", goerr.V("path", tmpName))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close snapshot", goerr.V("path", tmpName))
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return goerr.Wrap(err, "failed to set snapshot permission", goerr.V("path", tmpName))
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return goerr.Wrap(err, "failed to replace snapshot",
			goerr.V("from", tmpName),
			goerr.V("to", f.path),
		)
	}
	committed = true

	return nil
}
