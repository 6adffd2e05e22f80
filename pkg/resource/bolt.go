package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/grafana/linemap/pkg/linemap"
)

var boltBucketName = []byte(Type + "/" + Name)

// BoltStore keeps every resource in a single bbolt database file, keyed by
// module id.
type BoltStore struct {
	db *bbolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("db dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o644, bbolt.DefaultOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, module linemap.ModuleID) ([]byte, error) {
	if err := validateModule(module); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var blob []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucketName).Get([]byte(module))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, module)
		}
		// v is only valid inside the transaction
		blob = append([]byte(nil), v...)
		return nil
	})
	return blob, err
}

func (s *BoltStore) Put(ctx context.Context, module linemap.ModuleID, blob []byte) error {
	if err := validateModule(module); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucketName).Put([]byte(module), blob)
	})
}

func (s *BoltStore) Delete(ctx context.Context, module linemap.ModuleID) error {
	if err := validateModule(module); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucketName).Delete([]byte(module))
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }
