package resource

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/grafana/linemap/pkg/linemap"
)

// SidecarStore treats module ids as file paths and keeps each blob in a
// <module>.linemap file beside the module.
type SidecarStore struct {
	fs afero.Fs
}

func NewSidecarStore(fs afero.Fs) *SidecarStore {
	return &SidecarStore{fs: fs}
}

func SidecarPath(module linemap.ModuleID) string {
	return string(module) + SidecarExt
}

func (s *SidecarStore) Get(ctx context.Context, module linemap.ModuleID) ([]byte, error) {
	if err := validateModule(module); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(s.fs, SidecarPath(module))
}

func (s *SidecarStore) Put(ctx context.Context, module linemap.ModuleID, blob []byte) error {
	if err := validateModule(module); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFile(s.fs, SidecarPath(module), blob)
}

func (s *SidecarStore) Delete(ctx context.Context, module linemap.ModuleID) error {
	if err := validateModule(module); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.fs.Remove(SidecarPath(module))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *SidecarStore) Close() error { return nil }

// WriteFile replaces the file at path with blob. The blob is written to a
// temporary file first and renamed into place.
func WriteFile(fs afero.Fs, path string, blob []byte) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, blob, 0o644); err != nil {
		return errors.Wrap(err, "write line map file")
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return errors.Wrap(err, "rename line map file")
	}
	return nil
}

// ReadFile reads a line map file. A missing file is reported as ErrNotFound.
func ReadFile(fs afero.Fs, path string) ([]byte, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, errors.Wrap(err, "read line map file")
	}
	return b, nil
}
