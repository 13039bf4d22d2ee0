package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Invariant 1: any trap marked "all fuel consumed by WebAssembly" maps to
// OutOfFuel, for any message that merely contains the marker.
func TestClassifyTrapFuelExhaustion(t *testing.T) {
	messages := []string{
		"all fuel consumed by WebAssembly",
		"trap: all fuel consumed by WebAssembly at offset 42",
		"wasm trap: all fuel consumed by WebAssembly\ncaused by: ...",
	}
	for _, msg := range messages {
		kind, known := classifyTrap(msg)
		assert.True(t, known, msg)
		assert.Equal(t, KindOutOfFuel, kind, msg)
	}
}

func TestClassifyTrapEngineOOM(t *testing.T) {
	kind, known := classifyTrap("wasm trap: rust_oom detected during allocation")
	assert.True(t, known)
	assert.Equal(t, KindOutOfMemory, kind)
}

func TestClassifyTrapUnknownIsNotClassified(t *testing.T) {
	_, known := classifyTrap("wasm trap: unreachable executed")
	assert.False(t, known)
}

func TestIsAllocatorRefusal(t *testing.T) {
	assert.True(t, isAllocatorRefusal("memory allocation failed because the memory allocator returned a error"))
	assert.False(t, isAllocatorRefusal("nope"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "OK", KindOk.String())
	assert.Equal(t, "RUNTIME_ERROR", KindRuntimeError.String())
	assert.Equal(t, "OUT_OF_FUEL", KindOutOfFuel.String())
	assert.Equal(t, "OUT_OF_MEMORY", KindOutOfMemory.String())
}
