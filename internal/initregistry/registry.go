// Package initregistry resolves a short, operator-registered name to its
// init-script text, backed by S3 with an in-memory TTL cache in front —
// the named-init-script supplement to the protocol's inline init_script
// field. Grounded on the teacher's internal/store/cache.go cacheEntry[T]-
// over-sync.Map shape and its internal/config AWS wiring.
package initregistry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotFound is returned when the backing object for the requested ref
// cannot be fetched: a missing object and any other GetObject failure
// both map to it, with the S3 error text in the message.
var ErrNotFound = errors.New("initregistry: script not found")

// S3Client is the subset of the AWS SDK's S3 client this package calls,
// narrowed for testability.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type cacheEntry struct {
	script    string
	expiresAt time.Time
}

func (e *cacheEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Registry resolves init_script_ref values against S3 objects named
// "<prefix><ref>.js", cached for ttl.
type Registry struct {
	client S3Client
	bucket string
	prefix string
	ttl    time.Duration
	cache  sync.Map // ref → *cacheEntry
}

// New constructs a Registry. ttl <= 0 defaults to 30s, matching the
// configured default in internal/config.
func New(client S3Client, bucket, prefix string, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Registry{client: client, bucket: bucket, prefix: prefix, ttl: ttl}
}

// Resolve returns the cached script for ref, fetching and caching it from
// S3 on a miss. Returns ErrNotFound when GetObject fails for any reason.
func (r *Registry) Resolve(ctx context.Context, ref string) (string, error) {
	if v, ok := r.cache.Load(ref); ok {
		entry := v.(*cacheEntry)
		if !entry.expired() {
			return entry.script, nil
		}
		r.cache.Delete(ref)
	}

	key := r.prefix + ref + ".js"
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, ref, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("initregistry: read %s: %w", key, err)
	}

	script := string(data)
	r.cache.Store(ref, &cacheEntry{script: script, expiresAt: time.Now().Add(r.ttl)})
	return script, nil
}
