package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/sandboxd/internal/audit"
	"github.com/oriys/sandboxd/internal/events"
	"github.com/oriys/sandboxd/internal/sandbox"
)

// executeRequest drives one evaluation end to end, mirroring the
// reference server's execute_js_request: resolve or construct a context,
// run the init script on a cache miss, top up fuel, run the user script,
// and return the context to the store on Ok/RuntimeError. requestID is
// generated by the HTTP handler and used only for audit/event
// correlation, never derived from request content.
func (s *Server) executeRequest(ctx context.Context, requestID string, req requestBody) responseBody {
	initScript, resolveErr := s.resolveInitScript(ctx, req)
	if resolveErr != nil {
		return responseBody{status: statusInvalidRequest, message: resolveErr.Error()}
	}

	sandboxCfg := s.deps.Config.Sandbox
	start := time.Now()

	var sc *sandbox.Context
	if req.SandboxID != nil {
		if cached := s.deps.Store.Get(*req.SandboxID, initScript); cached != nil {
			sc = cached.(*sandbox.Context)
		}
	}

	if sc == nil {
		fresh, err := sandbox.New(ctx, sandbox.Limits{
			MaxBytes:         sandboxCfg.MaxBytes,
			MaxTableElements: sandboxCfg.MaxTableElements,
		})
		if err != nil {
			return s.internalError(ctx, requestID, stageInit, "internal error while constructing sandbox", req, start)
		}
		sc = fresh

		if initScript != nil {
			sc.AddFuel(sandboxCfg.FuelPerInit)
			fuelBeforeInit := sc.FuelRemaining()
			outcome := sc.Run(ctx, *initScript)
			if resp, handled := s.handleNonOkOutcome(ctx, requestID, outcome, sc, initScript, fuelBeforeInit, stageInit, req, start); handled {
				return resp
			}
			sc = outcome.Ctx
		}
	}

	if remaining := sc.FuelRemaining(); remaining < sandboxCfg.FuelPerCall {
		sc.AddFuel(sandboxCfg.FuelPerCall - remaining)
	}
	fuelBeforeRun := sc.FuelRemaining()

	outcome := sc.Run(ctx, req.Script)
	if resp, handled := s.handleNonOkOutcome(ctx, requestID, outcome, sc, initScript, fuelBeforeRun, stageScript, req, start); handled {
		return resp
	}

	if req.SandboxID != nil {
		s.deps.Store.Set(*req.SandboxID, initScript, outcome.Ctx)
	}

	fuelConsumed := fuelBeforeRun - sc.FuelRemaining()
	s.recordCompletion(ctx, requestID, req, stageScript, statusOK, fuelConsumed, start, len(outcome.Stdout), len(outcome.Stderr))
	return responseBody{
		status:  statusOK,
		result:  outcome.Result.Value(),
		present: outcome.Result.Present(),
		stdout:  outcome.Stdout,
		stderr:  outcome.Stderr,
	}
}

// handleNonOkOutcome classifies a RunOutcome that is not Ok into its
// response and reports whether the caller should return it immediately.
// RuntimeError still carries its context back to the store if the
// request has a sandbox id; OutOfFuel/OutOfMemory never do. sc is the
// same Context the caller invoked Run on, passed separately from
// outcome.Ctx because OutOfFuel/OutOfMemory leave that nil — its fuel
// counter is still readable even after an outcome has terminated it,
// which is what lets fuelConsumed be computed uniformly here. initScript
// is the one the caller already resolved once for this request, so it
// is reused rather than hitting the registry again.
func (s *Server) handleNonOkOutcome(ctx context.Context, requestID string, outcome sandbox.RunOutcome, sc *sandbox.Context, initScript *string, fuelBeforeRun uint64, st stage, req requestBody, start time.Time) (responseBody, bool) {
	fuelConsumed := fuelBeforeRun - sc.FuelRemaining()
	switch outcome.Kind {
	case sandbox.KindOk:
		return responseBody{}, false
	case sandbox.KindRuntimeError:
		if req.SandboxID != nil {
			s.deps.Store.Set(*req.SandboxID, initScript, outcome.Ctx)
		}
		s.recordCompletion(ctx, requestID, req, st, statusRuntimeError, fuelConsumed, start, len(outcome.Stdout), len(outcome.Stderr))
		return responseBody{
			status:  statusRuntimeError,
			stage:   st,
			message: outcome.Message,
			stdout:  outcome.Stdout,
			stderr:  outcome.Stderr,
		}, true
	case sandbox.KindOutOfFuel:
		_ = sc.Close(ctx)
		s.recordCompletion(ctx, requestID, req, st, statusOutOfFuel, fuelConsumed, start, len(outcome.Stdout), len(outcome.Stderr))
		return responseBody{status: statusOutOfFuel, stage: st, stdout: outcome.Stdout, stderr: outcome.Stderr}, true
	case sandbox.KindOutOfMemory:
		_ = sc.Close(ctx)
		s.recordCompletion(ctx, requestID, req, st, statusOutOfMemory, fuelConsumed, start, len(outcome.Stdout), len(outcome.Stderr))
		return responseBody{status: statusOutOfMemory, stage: st, stdout: outcome.Stdout, stderr: outcome.Stderr}, true
	default:
		return responseBody{}, false
	}
}

func (s *Server) internalError(ctx context.Context, requestID string, st stage, message string, req requestBody, start time.Time) responseBody {
	s.recordCompletion(ctx, requestID, req, st, statusInternalServerErr, 0, start, 0, 0)
	return responseBody{status: statusInternalServerErr, stage: st, message: message}
}

// resolveInitScript implements the init_script / init_script_ref mutual
// exclusivity rule from the HTTP collaborator expansion.
func (s *Server) resolveInitScript(ctx context.Context, req requestBody) (*string, error) {
	if req.InitScript != nil && req.InitScriptRef != nil {
		return nil, fmt.Errorf("init_script and init_script_ref are mutually exclusive")
	}
	if req.InitScript != nil {
		return req.InitScript, nil
	}
	if req.InitScriptRef != nil {
		if s.deps.Registry == nil {
			return nil, fmt.Errorf("init_script_ref is not supported: no registry configured")
		}
		script, err := s.deps.Registry.Resolve(ctx, *req.InitScriptRef)
		if err != nil {
			return nil, err
		}
		return &script, nil
	}
	return nil, nil
}

// recordCompletion feeds the metrics, audit, and event collaborators for
// one terminal outcome. Best-effort: failures there never surface here.
func (s *Server) recordCompletion(ctx context.Context, requestID string, req requestBody, st stage, outcomeStatus status, fuelConsumed uint64, start time.Time, stdoutLen, stderrLen int) {
	duration := time.Since(start)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveOutcome(string(outcomeStatus), string(st), fuelConsumed)
	}

	if s.deps.Audit != nil {
		s.deps.Audit.Record(ctx, audit.Entry{
			RequestID:    requestID,
			SandboxID:    req.SandboxID,
			Stage:        string(st),
			Status:       string(outcomeStatus),
			FuelConsumed: fuelConsumed,
			DurationMS:   duration.Milliseconds(),
			StdoutLen:    stdoutLen,
			StderrLen:    stderrLen,
			CreatedAt:    time.Now(),
		})
	}
	if s.deps.Events != nil {
		s.deps.Events.Publish(ctx, events.ExecutionEvent{
			RequestID:    requestID,
			SandboxID:    req.SandboxID,
			Stage:        string(st),
			Status:       string(outcomeStatus),
			FuelConsumed: fuelConsumed,
			DurationMS:   duration.Milliseconds(),
			Timestamp:    time.Now().Unix(),
		})
	}
}
