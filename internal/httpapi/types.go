package httpapi

import "encoding/json"

// requestBody is the POST /execute payload, per CORE-6 plus the
// init_script_ref supplement.
type requestBody struct {
	SandboxID     *string `json:"sandbox_id"`
	InitScript    *string `json:"init_script"`
	InitScriptRef *string `json:"init_script_ref"`
	Script        string  `json:"script"`
}

// stage identifies which evaluation (init or user script) produced a
// non-Ok outcome.
type stage string

const (
	stageInit   stage = "INIT"
	stageScript stage = "SCRIPT"
)

// status is the response's top-level classification, matching CORE-6's
// enumerated values exactly.
type status string

const (
	statusOK                status = "OK"
	statusRuntimeError      status = "RUNTIME_ERROR"
	statusOutOfFuel         status = "OUT_OF_FUEL"
	statusOutOfMemory       status = "OUT_OF_MEMORY"
	statusInvalidRequest    status = "INVALID_REQUEST"
	statusInternalServerErr status = "INTERNAL_SERVER_ERROR"
)

// responseBody is the discriminated POST /execute response, shaped after
// the reference server's ResponseBody enum.
type responseBody struct {
	status  status
	stage   stage
	message string
	result  json.RawMessage
	present bool
	stdout  string
	stderr  string
}

func (r responseBody) httpStatusCode() int {
	switch r.status {
	case statusOK:
		return 200
	case statusInternalServerErr:
		return 500
	default:
		return 400
	}
}

func (r responseBody) toJSON() ([]byte, error) {
	out := map[string]any{"status": string(r.status)}
	switch r.status {
	case statusOK:
		if r.present {
			out["result"] = r.result
		} else {
			out["result"] = nil
		}
		out["stdout"] = r.stdout
		out["stderr"] = r.stderr
	case statusInvalidRequest:
		out["message"] = r.message
	case statusInternalServerErr:
		out["stage"] = string(r.stage)
		out["message"] = r.message
	case statusRuntimeError:
		out["stage"] = string(r.stage)
		out["message"] = r.message
		out["stdout"] = r.stdout
		out["stderr"] = r.stderr
	case statusOutOfFuel:
		out["stage"] = string(r.stage)
		out["message"] = "Ran out of CPU time while evaluating the script"
		out["stdout"] = r.stdout
		out["stderr"] = r.stderr
	case statusOutOfMemory:
		out["stage"] = string(r.stage)
		out["message"] = "Ran out of memory while evaluating the script"
		out["stdout"] = r.stdout
		out["stderr"] = r.stderr
	}
	return json.Marshal(out)
}
