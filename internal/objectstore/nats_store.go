// Package objectstore provides a NATS JetStream implementation of the
// core.ObjectStore interface used for text inputs and rendered audio.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// contentTypeFor maps a key's extension to the MIME type recorded on the
// stored object. Unknown extensions fall back to an opaque byte stream.
func contentTypeFor(key string) string {
	switch filepath.Ext(key) {
	case ".wav":
		return "audio/wav"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Store implements core.ObjectStore on top of a JetStream object store
// bucket.
type Store struct {
	bucket string
	store  nats.ObjectStore
}

// New creates a Store bound to bucketName, creating the bucket when it does
// not exist yet.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*Store, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Storage for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf(
				"failed to create object store bucket '%s': %w", bucketName, err,
			)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to bind to existing object store bucket '%s': %w", bucketName, err,
			)
		}
	}

	return &Store{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves the object stored under key.
func (s *Store) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to get object '%s' from bucket '%s': %w", key, s.bucket, err,
		)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload stores data under key, tagging the object with a MIME type derived
// from the key's extension.
func (s *Store) Upload(_ context.Context, key string, data []byte) error {
	meta := &nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers: nats.Header{
			"Content-Type": []string{contentTypeFor(key)},
		},
		Metadata: nil,
		Opts:     nil,
	}

	_, err := s.store.Put(meta, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf(
			"failed to put object '%s' to bucket '%s': %w", key, s.bucket, err,
		)
	}

	return nil
}
