package sandbox

import "github.com/oriys/sandboxd/internal/protocol"

// Kind discriminates the four-way classification a run() produces.
type Kind int

const (
	KindOk Kind = iota
	KindRuntimeError
	KindOutOfFuel
	KindOutOfMemory
)

// String renders the kind the way the HTTP collaborator's status field
// spells it.
func (k Kind) String() string {
	switch k {
	case KindOk:
		return "OK"
	case KindRuntimeError:
		return "RUNTIME_ERROR"
	case KindOutOfFuel:
		return "OUT_OF_FUEL"
	case KindOutOfMemory:
		return "OUT_OF_MEMORY"
	default:
		return "UNKNOWN"
	}
}

// RunOutcome is the host-side classification of one Context.Run call.
// Ctx is non-nil only for Ok and RuntimeError: the two outcomes in which
// the guest ran to completion and the context remains reusable. An
// OutOfFuel or OutOfMemory outcome always carries a nil Ctx — the
// instance is terminated and must never be run again.
type RunOutcome struct {
	Kind    Kind
	Ctx     *Context
	Result  protocol.EvaluationResult
	Message string
	Stdout  string
	Stderr  string
}
