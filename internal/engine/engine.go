// Package engine owns the process-wide, immutable WebAssembly compilation
// settings and the precompiled guest module artifact: the Go analogue of
// the teacher's external wasmtime engine/module/linker singletons
// (internal/wasm/manager.go, internal/backend/detect.go), adopted
// in-process via wazero (github.com/tetratelabs/wazero) since this spec
// needs in-process memory/table limiting and a virtual filesystem that
// cannot survive a subprocess boundary.
package engine

import (
	"context"
	_ "embed"
	"sync"

	"github.com/tetratelabs/wazero"
)

// guestModule is the guest interpreter's WebAssembly binary. It is plain
// WASM, not a precompiled engine artifact: each sandbox's Runtime
// decodes, validates and compiles it in CompileModule, with the shared
// CompilationCache reusing earlier compilations. This placeholder embeds a minimal,
// empty WASM module — the real interpreter's inner semantics are an
// external collaborator, not part of this core.
//
//go:embed guest.wasm
var guestModule []byte

var (
	initOnce     sync.Once
	sharedCache  wazero.CompilationCache
	sharedConfig wazero.RuntimeConfig
)

// Bootstrap performs the one-shot, process-wide engine initialization: a
// shared compilation cache every per-sandbox wazero.Runtime compiles
// against. Safe to call repeatedly; only the first call does the work.
//
// A wazero CompiledModule is bound to the Runtime that produced it and
// its code is freed when that Runtime closes — unlike wasmtime's Module,
// it cannot be compiled once in a throwaway Runtime and then shared
// across every sandbox's own Runtime. So there is no process-wide
// CompiledModule singleton here: each sandbox.New compiles the embedded
// guest bytes itself, against its own Runtime, and the shared
// CompilationCache is what keeps that repeat compilation cheap.
func Bootstrap(ctx context.Context) error {
	initOnce.Do(func() {
		sharedCache = wazero.NewCompilationCache()
		sharedConfig = wazero.NewRuntimeConfig().
			WithCompilationCache(sharedCache).
			WithCloseOnContextDone(true)
	})
	return nil
}

// GuestModuleBinary returns the embedded guest interpreter's raw WASM
// bytes, for a per-sandbox Runtime to compile against the shared cache.
func GuestModuleBinary() []byte {
	return guestModule
}

// Config returns the shared RuntimeConfig new per-sandbox runtimes are
// built from. Per-sandbox memory limits are applied when a fresh
// wazero.Runtime is constructed for a SandboxContext (WithMemoryLimitPages
// is a runtime-level setting in wazero, unlike wasmtime's per-Store
// StoreLimits) — see internal/sandbox for where that happens.
func Config() wazero.RuntimeConfig {
	return sharedConfig
}
