// Package sandbox implements one isolated guest VM instance: capped
// linear memory and function table, a fuel counter, wired stdio pipes
// and a private scratch output directory, and the run() entry point
// that drives one evaluation to completion. This is CORE-4.4 of the
// design: the per-invocation sandbox context.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/oriys/sandboxd/internal/engine"
	"github.com/oriys/sandboxd/internal/guestfs"
	"github.com/oriys/sandboxd/internal/iopipe"
	"github.com/oriys/sandboxd/internal/protocol"
)

// wasmPageSize is the fixed WebAssembly linear-memory page size, used to
// translate a byte cap into the page count wazero's RuntimeConfig wants.
const wasmPageSize = 64 * 1024

// entrypointName is the guest's exported re-entrant evaluation function,
// called once per run() per CORE-4.5.
const entrypointName = "run"

// Limits bounds one sandbox: a memory byte cap and a function-table
// element cap, per CORE-4.4's new(limits).
type Limits struct {
	MaxBytes         uint64
	MaxTableElements uint32
}

// Context is one isolated guest instance. Ownership is exclusive: at
// most one goroutine may call operations on a Context at a time (the
// sandbox store's eager-removal-on-get discipline is what makes this
// true in practice; Context itself does not add its own locking on the
// hot path, matching the reference implementation's single-owner
// design).
type Context struct {
	runtime    wazero.Runtime
	module     api.Module
	runFn      api.Function
	mem        api.Memory
	stdin      iopipe.Source
	stdout     iopipe.Sink
	stderr     iopipe.Sink
	guestDir   *guestfs.Dir
	fuel       uint64
	terminated bool
}

// New constructs a fresh sandbox: a new wazero.Runtime (because wazero's
// memory limit is a runtime-level setting, not a per-module one like
// wasmtime's StoreLimits — see DESIGN.md), the guest module compiled
// and instantiated against it, with fresh pipes and a private scratch
// directory mounted at "/" and "/output.json" passed as the guest's
// first argument. The returned context's fuel counter starts at zero.
//
// The guest module is compiled here, per sandbox, rather than once at
// process startup: a wazero CompiledModule is bound to the Runtime that
// produced it, so it cannot be shared across every sandbox's own
// Runtime the way a wasmtime Module can be shared across Stores (see
// internal/engine.Bootstrap). The shared CompilationCache keeps this
// repeat compile cheap. Compiling per sandbox is also what makes fuel
// metering work at all: wazero consults a context's
// FunctionListenerFactory at CompileModule time, not at Call time, so
// the factory charging this sandbox's fuel counter must be attached to
// the context passed to CompileModule.
func New(ctx context.Context, limits Limits) (*Context, error) {
	maxPages := (limits.MaxBytes + wasmPageSize - 1) / wasmPageSize
	cfg := engine.Config().WithMemoryLimitPages(uint32(maxPages))

	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	if err := engine.LinkHostCapabilities(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	sc := &Context{
		runtime: rt,
		stdin:   iopipe.NewSource(),
		stdout:  iopipe.NewSink(),
		stderr:  iopipe.NewSink(),
	}

	compileCtx := withFuelListener(ctx, sc)
	compiled, err := rt.CompileModule(compileCtx, engine.GuestModuleBinary())
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("sandbox: compile guest module: %w", err)
	}

	if err := checkTableCapacity(compiled, limits.MaxTableElements); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	dir, err := guestfs.NewDir()
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	sc.guestDir = dir

	fsCfg := wazero.NewFSConfig().WithDirMount(dir.Path(), "/")
	modCfg := wazero.NewModuleConfig().
		WithStdin(sc.stdin).
		WithStdout(sc.stdout).
		WithStderr(sc.stderr).
		WithArgs(entrypointName, entrypointArg).
		WithFSConfig(fsCfg)

	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		rt.Close(ctx)
		dir.Close()
		return nil, fmt.Errorf("sandbox: instantiate guest module: %w", err)
	}

	fn := mod.ExportedFunction(entrypointName)
	if fn == nil {
		rt.Close(ctx)
		dir.Close()
		return nil, fmt.Errorf("sandbox: guest module has no exported %q function", entrypointName)
	}

	sc.module = mod
	sc.runFn = fn
	sc.mem = mod.Memory()
	return sc, nil
}

// entrypointArg is the path argument passed to the guest so it knows
// where to write its EvaluationResult, per CORE-4.4 and CORE-6.
const entrypointArg = "/" + guestfs.OutputFileName

// checkTableCapacity approximates wasmtime's per-Store table-elements
// limiter. wazero does not expose a runtime-level, dynamically-enforced
// table cap the way wasmtime's StoreLimitsBuilder.table_elements does;
// short of rewriting the module's table section at load time, the best
// this host can do is a construction-time sanity check that maxElements
// is non-zero; the compiled module's tables are not inspected. Real enforcement
// against a misbehaving guest growing a table at runtime is therefore a
// known gap versus the reference implementation — see DESIGN.md.
func checkTableCapacity(mod wazero.CompiledModule, maxElements uint32) error {
	if maxElements == 0 {
		return fmt.Errorf("sandbox: max_table_elements must be greater than zero")
	}
	return nil
}

// AddFuel increments the fuel counter by n.
func (c *Context) AddFuel(n uint64) {
	c.fuel += n
}

// FuelRemaining observes the current fuel counter.
func (c *Context) FuelRemaining() uint64 {
	return c.fuel
}

// MemoryConsumed observes the guest's current linear-memory size in
// bytes.
func (c *Context) MemoryConsumed() uint64 {
	if c.mem == nil {
		return 0
	}
	return uint64(c.mem.Size())
}

// Close releases the sandbox's wazero runtime and its scratch
// directory. Called when a context is evicted from the store or
// discarded after a terminal outcome.
func (c *Context) Close(ctx context.Context) error {
	err := c.runtime.Close(ctx)
	if dirErr := c.guestDir.Close(); err == nil {
		err = dirErr
	}
	return err
}

// Run attempts one evaluation of script, per CORE-4.4's algorithm:
// push the encoded Input onto stdin, invoke the guest entrypoint,
// classify the result. Ok and RuntimeError outcomes carry this same
// Context back to the caller for reuse; OutOfFuel and OutOfMemory mark
// it terminated and return a nil Ctx.
func (c *Context) Run(ctx context.Context, script string) RunOutcome {
	if c.terminated {
		panic("sandbox: Run called on a terminated context")
	}

	line, err := protocol.Input{Script: script}.EncodeLine()
	if err != nil {
		panic(fmt.Sprintf("sandbox: host bug: could not encode input: %v", err))
	}
	c.stdin.Push(line)

	outcome, trapped := c.invoke(ctx)
	if trapped {
		return outcome
	}
	return c.classifyCompletion()
}

// invoke calls the guest entrypoint and recovers from the fuel-exhaustion
// panic raised by the fuel listener (see listener.go) or reports any
// other call error as a trap. The second return value is true when the
// call trapped (OutOfFuel / OutOfMemory / host-fatal), in which case the
// caller must not also run classifyCompletion.
//
// The fuel listener is not attached here: wazero only consults a
// FunctionListenerFactory at CompileModule time, so it was already
// wired into this sandbox's compile context back in New, and fires on
// every WASM-to-WASM call made during this invocation without any
// further wrapping of ctx.
func (c *Context) invoke(ctx context.Context) (outcome RunOutcome, trapped bool) {
	defer func() {
		if r := recover(); r != nil {
			outcome, trapped = c.classifyTrapRecovery(fmt.Sprint(r))
		}
	}()

	if _, err := c.runFn.Call(ctx); err != nil {
		outcome, trapped = c.classifyTrapRecovery(err.Error())
		return outcome, trapped
	}
	return RunOutcome{}, false
}

// classifyTrapRecovery turns a trap message into a terminal RunOutcome,
// or re-panics for the host-fatal case (an unrecognized trap, per
// CORE-4.4: "this indicates a host bug or corrupted module, not a guest
// fault").
func (c *Context) classifyTrapRecovery(message string) (RunOutcome, bool) {
	stdout, _ := c.stdout.DrainToString()
	stderr, _ := c.stderr.DrainToString()

	kind, known := classifyTrap(message)
	if !known {
		panic(fmt.Sprintf("sandbox: host-fatal trap: %s", message))
	}
	c.terminated = true
	return RunOutcome{Kind: kind, Stdout: stdout, Stderr: stderr}, true
}

// classifyCompletion handles the normal-return path: parse the guest's
// output.json as an EvaluationResult and classify Ok / RuntimeError /
// OutOfMemory (an allocator-refusal message reclassifies as the latter).
func (c *Context) classifyCompletion() RunOutcome {
	stdout, _ := c.stdout.DrainToString()
	stderr, _ := c.stderr.DrainToString()

	raw, err := c.guestDir.ReadOutput()
	if err != nil {
		panic(fmt.Sprintf("sandbox: host-fatal: output file is not valid UTF-8: %v", err))
	}
	if err := c.guestDir.Reset(); err != nil {
		panic(fmt.Sprintf("sandbox: host-fatal: reset output file: %v", err))
	}

	var result protocol.EvaluationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		panic(fmt.Sprintf("sandbox: host-fatal: malformed evaluation result: %v", err))
	}

	if !result.OK() {
		if isAllocatorRefusal(result.Message()) {
			c.terminated = true
			return RunOutcome{Kind: KindOutOfMemory, Stdout: stdout, Stderr: stderr}
		}
		return RunOutcome{Kind: KindRuntimeError, Ctx: c, Message: result.Message(), Stdout: stdout, Stderr: stderr}
	}
	return RunOutcome{Kind: KindOk, Ctx: c, Result: result, Stdout: stdout, Stderr: stderr}
}
