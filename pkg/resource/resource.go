// Package resource stores encoded line maps next to the modules they
// describe. A module carries at most one line map resource, addressed by a
// fixed type, name and locale.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/grafana/linemap/pkg/linemap"
)

const (
	Type   = "LINEMAP"
	Name   = "LINEMAP"
	Locale = 0

	// SidecarExt is appended to a module path to get its sidecar file.
	SidecarExt = ".linemap"
)

var (
	ErrNotFound      = errors.New("line map resource not found")
	ErrInvalidModule = errors.New("invalid module id")
)

// Store reads and writes the encoded line map blob of a module. The blob is
// opaque to the store.
type Store interface {
	Get(ctx context.Context, module linemap.ModuleID) ([]byte, error)
	Put(ctx context.Context, module linemap.ModuleID, blob []byte) error
	Delete(ctx context.Context, module linemap.ModuleID) error
	io.Closer
}

// ObjectName returns the object key of the resource of module:
// <module>/<type>/<name>/<locale>. The module id is path escaped so that it
// maps to a single path element.
func ObjectName(module linemap.ModuleID) (string, error) {
	if err := validateModule(module); err != nil {
		return "", err
	}
	return url.PathEscape(string(module)) + "/" + Type + "/" + Name + "/" + strconv.Itoa(Locale), nil
}

func validateModule(module linemap.ModuleID) error {
	switch module {
	case "", ".", "..":
		return fmt.Errorf("%w: %q", ErrInvalidModule, module)
	}
	return nil
}
