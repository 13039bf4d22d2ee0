package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
)

func TestBootstrapPopulatesSharedCacheAndConfig(t *testing.T) {
	require.NoError(t, Bootstrap(context.Background()))
	assert.NotNil(t, Config())
	assert.NotEmpty(t, GuestModuleBinary())
}

func TestBootstrapIsIdempotent(t *testing.T) {
	require.NoError(t, Bootstrap(context.Background()))
	first := Config()
	require.NoError(t, Bootstrap(context.Background()))
	assert.Same(t, first, Config())
}

func TestGuestModuleBinaryCompilesAgainstASandboxRuntime(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Bootstrap(ctx))

	rt := wazero.NewRuntimeWithConfig(ctx, Config())
	defer rt.Close(ctx)

	_, err := rt.CompileModule(ctx, GuestModuleBinary())
	assert.NoError(t, err)
}
