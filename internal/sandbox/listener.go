package sandbox

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
)

// fuelPerCall is the cost charged against a Context's fuel counter for
// each WASM-to-WASM function call observed during a run. wazero has no
// built-in instruction-level cost metering (wasmtime's fuel is an
// engine-native feature this port has no equivalent of); charging per
// call via wazero's experimental function-listener hook is the coarsest
// available approximation, but it is adequate for a guest whose hot path
// is itself an interpreter dispatch loop — i.e. its tight loop already
// is a sequence of calls.
const fuelPerCall = 1

// withFuelListener attaches a function listener factory to ctx that
// decrements sc's fuel counter on every guest function call and panics
// with the fuel-exhaustion marker classify.go recognizes once it
// reaches zero, mirroring wasmtime's own fuel-exhaustion trap message
// so the same classification logic applies regardless of engine.
//
// wazero only consults a FunctionListenerFactory when CompileModule is
// called, not on each Call — so this must wrap the context passed to
// CompileModule (see Context.New), not the context passed to Call.
func withFuelListener(ctx context.Context, sc *Context) context.Context {
	return experimental.WithFunctionListenerFactory(ctx, fuelListenerFactory{sc: sc})
}

type fuelListenerFactory struct {
	sc *Context
}

func (f fuelListenerFactory) NewListener(def api.FunctionDefinition) experimental.FunctionListener {
	return fuelListener{sc: f.sc}
}

type fuelListener struct {
	sc *Context
}

func (l fuelListener) Before(ctx context.Context, mod api.Module, def api.FunctionDefinition, params []uint64, stack experimental.StackIterator) context.Context {
	if l.sc.fuel < fuelPerCall {
		panic(fuelExhaustedMarker)
	}
	l.sc.fuel -= fuelPerCall
	return ctx
}

func (l fuelListener) After(ctx context.Context, mod api.Module, def api.FunctionDefinition, results []uint64) {
}
