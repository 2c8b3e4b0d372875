// Package storage provides the NATS JetStream object store holding rendered
// narration audio, plus the download-URL issuing gateway mapping.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/book-expert/narration-service/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// metaDownloadToken is the object metadata key holding the per-object
// download token embedded in issued URLs.
const metaDownloadToken = "download-token"

// Static errors.
var (
	ErrUnknownBucket  = errors.New("reference names a bucket this store does not own")
	ErrMissingToken   = errors.New("object has no download token")
	ErrPublicURLEmpty = errors.New("public base URL cannot be empty")
)

// NatsObjectStore implements core.ObjectStore and core.URLIssuer using NATS
// JetStream.
type NatsObjectStore struct {
	jetstreamContext nats.JetStreamContext
	bucket           string
	publicBaseURL    string
	store            nats.ObjectStore
}

// New creates and initializes a NatsObjectStore bound to the given bucket.
// publicBaseURL is the HTTPS origin of the download gateway that serves
// issued URLs.
func New(
	jetstreamContext nats.JetStreamContext,
	bucketName, publicBaseURL string,
) (*NatsObjectStore, error) {
	if publicBaseURL == "" {
		return nil, ErrPublicURLEmpty
	}

	// Use a "create-first" approach.
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

	// If the bucket already exists, bind to it.
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			store, err = jetstreamContext.ObjectStore(bucketName)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to bind to existing object store bucket '%s': %w",
					bucketName, err)
			}
		} else {
			return nil, fmt.Errorf(
				"failed to create object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		jetstreamContext: jetstreamContext,
		bucket:           bucketName,
		publicBaseURL:    publicBaseURL,
		store:            store,
	}, nil
}

// Bucket returns the bucket this store is bound to.
func (n *NatsObjectStore) Bucket() string {
	return n.bucket
}

// Download retrieves an object from the store.
func (n *NatsObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
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

// Upload saves an object and mints its download token. onProgress, when
// non-nil, receives monotonically increasing percentages as the payload is
// consumed, ending at 100.
func (n *NatsObjectStore) Upload(
	_ context.Context,
	key string,
	data []byte,
	onProgress core.ProgressFunc,
) error {
	reader := newProgressReader(data, onProgress)

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata: map[string]string{
			metaDownloadToken: uuid.NewString(),
		},
		Opts: nil,
	}, reader)
	if err != nil {
		return fmt.Errorf(
			"failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	reader.finish()

	return nil
}

// IssueURL resolves a bucket/object pair into the gateway's HTTPS download
// URL carrying the object's access token.
func (n *NatsObjectStore) IssueURL(_ context.Context, bucket, object string) (string, error) {
	if bucket != n.bucket {
		return "", fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
	}

	info, err := n.store.GetInfo(object)
	if err != nil {
		return "", fmt.Errorf(
			"failed to stat object '%s' in bucket '%s': %w", object, n.bucket, err)
	}

	token := info.Metadata[metaDownloadToken]
	if token == "" {
		return "", fmt.Errorf("%w: '%s'", ErrMissingToken, object)
	}

	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media&token=%s",
		n.publicBaseURL, n.bucket, url.PathEscape(object), token), nil
}
