package resource

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
)

const (
	Filesystem = "filesystem"
	InMemory   = "inmemory"
	Bolt       = "bolt"
	Sidecar    = "sidecar"

	boltFileName = "linemap.boltdb"
)

var (
	SupportedBackends            = []string{Filesystem, InMemory, Bolt, Sidecar}
	ErrUnsupportedStorageBackend = errors.New("unsupported storage backend")
)

type Config struct {
	Backend   string `yaml:"backend"`
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix" category:"advanced"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Backend, "storage.backend", Sidecar, fmt.Sprintf("Resource storage backend (%v).", SupportedBackends))
	f.StringVar(&cfg.Directory, "storage.directory", "./data", "Local directory for the filesystem and bolt backends.")
	f.StringVar(&cfg.Prefix, "storage.prefix", "", "Object name prefix for bucket backends.")
}

func (cfg *Config) Validate() error {
	switch cfg.Backend {
	case Filesystem, Bolt:
		if cfg.Directory == "" {
			return fmt.Errorf("storage directory is required for the %s backend", cfg.Backend)
		}
	case InMemory, Sidecar:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedStorageBackend, cfg.Backend)
	}
	return nil
}

// NewStore creates the store selected by cfg. Bucket backends report
// operation metrics to reg.
func NewStore(cfg Config, reg prometheus.Registerer) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case Bolt:
		return OpenBoltStore(filepath.Join(cfg.Directory, boltFileName))
	case Sidecar:
		return NewSidecarStore(afero.NewOsFs()), nil
	}
	bkt, err := NewBucket(cfg)
	if err != nil {
		return nil, err
	}
	bkt = objstore.WrapWithMetrics(bkt, reg, cfg.Backend)
	return NewBucketStore(bkt), nil
}

// NewBucket creates the raw bucket of a bucket backend.
func NewBucket(cfg Config) (objstore.Bucket, error) {
	var (
		bkt objstore.Bucket
		err error
	)
	switch cfg.Backend {
	case Filesystem:
		if bkt, err = filesystem.NewBucket(cfg.Directory); err != nil {
			return nil, err
		}
	case InMemory:
		bkt = objstore.NewInMemBucket()
	default:
		return nil, fmt.Errorf("%w: %q is not a bucket backend", ErrUnsupportedStorageBackend, cfg.Backend)
	}
	if cfg.Prefix != "" {
		bkt = objstore.NewPrefixedBucket(bkt, cfg.Prefix)
	}
	return bkt, nil
}
