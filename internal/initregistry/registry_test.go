package initregistry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	calls int
	body  string
	err   error
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(f.body))}, nil
}

func TestResolveFetchesOnMiss(t *testing.T) {
	client := &fakeS3{body: "globalThis.x = 1;"}
	reg := New(client, "bucket", "init-scripts/", time.Minute)

	script, err := reg.Resolve(context.Background(), "prelude")
	require.NoError(t, err)
	assert.Equal(t, "globalThis.x = 1;", script)
	assert.Equal(t, 1, client.calls)
}

func TestResolveCachesWithinTTL(t *testing.T) {
	client := &fakeS3{body: "x"}
	reg := New(client, "bucket", "init-scripts/", time.Minute)

	_, err := reg.Resolve(context.Background(), "a")
	require.NoError(t, err)
	_, err = reg.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestResolveRefetchesAfterExpiry(t *testing.T) {
	client := &fakeS3{body: "x"}
	reg := New(client, "bucket", "init-scripts/", time.Nanosecond)

	_, err := reg.Resolve(context.Background(), "a")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = reg.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestResolveNotFound(t *testing.T) {
	client := &fakeS3{err: errors.New("NoSuchKey")}
	reg := New(client, "bucket", "init-scripts/", time.Minute)

	_, err := reg.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
