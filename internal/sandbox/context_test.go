package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	wazeroengine "github.com/oriys/sandboxd/internal/engine"
)

// compileForTest compiles the embedded guest module against a fresh
// runtime, the same shape sandbox.New uses: the cache makes this cheap,
// but the resulting CompiledModule is only ever valid against the
// Runtime passed here.
func compileForTest(t *testing.T) (wazero.Runtime, wazero.CompiledModule) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, wazeroengine.Bootstrap(ctx))

	rt := wazero.NewRuntimeWithConfig(ctx, wazeroengine.Config())
	compiled, err := rt.CompileModule(ctx, wazeroengine.GuestModuleBinary())
	require.NoError(t, err)
	return rt, compiled
}

func TestCheckTableCapacityRejectsZero(t *testing.T) {
	rt, compiled := compileForTest(t)
	defer rt.Close(context.Background())

	err := checkTableCapacity(compiled, 0)
	assert.Error(t, err)
}

func TestCheckTableCapacityAcceptsPositive(t *testing.T) {
	rt, compiled := compileForTest(t)
	defer rt.Close(context.Background())

	err := checkTableCapacity(compiled, 10_000)
	assert.NoError(t, err)
}

func TestAddFuelAndFuelRemaining(t *testing.T) {
	sc := &Context{}
	assert.Equal(t, uint64(0), sc.FuelRemaining())
	sc.AddFuel(100)
	assert.Equal(t, uint64(100), sc.FuelRemaining())
	sc.AddFuel(50)
	assert.Equal(t, uint64(150), sc.FuelRemaining())
}

func TestMemoryConsumedWithNoMemory(t *testing.T) {
	sc := &Context{}
	assert.Equal(t, uint64(0), sc.MemoryConsumed())
}
