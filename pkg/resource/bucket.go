package resource

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/thanos-io/objstore"

	"github.com/grafana/linemap/pkg/linemap"
)

// BucketStore keeps resources in an object storage bucket.
type BucketStore struct {
	bucket objstore.Bucket
}

func NewBucketStore(bucket objstore.Bucket) *BucketStore {
	return &BucketStore{bucket: bucket}
}

func (s *BucketStore) Get(ctx context.Context, module linemap.ModuleID) ([]byte, error) {
	name, err := ObjectName(module)
	if err != nil {
		return nil, err
	}
	r, err := s.bucket.Get(ctx, name)
	if err != nil {
		if s.bucket.IsObjNotFoundErr(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, module)
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

func (s *BucketStore) Put(ctx context.Context, module linemap.ModuleID, blob []byte) error {
	name, err := ObjectName(module)
	if err != nil {
		return err
	}
	if err = s.bucket.Upload(ctx, name, bytes.NewReader(blob)); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (s *BucketStore) Delete(ctx context.Context, module linemap.ModuleID) error {
	name, err := ObjectName(module)
	if err != nil {
		return err
	}
	if err = s.bucket.Delete(ctx, name); err != nil && !s.bucket.IsObjNotFoundErr(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (s *BucketStore) Close() error { return s.bucket.Close() }
