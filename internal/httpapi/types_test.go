package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseBodyHTTPStatusCode(t *testing.T) {
	cases := []struct {
		status status
		want   int
	}{
		{statusOK, 200},
		{statusRuntimeError, 400},
		{statusOutOfFuel, 400},
		{statusOutOfMemory, 400},
		{statusInvalidRequest, 400},
		{statusInternalServerErr, 500},
	}
	for _, c := range cases {
		resp := responseBody{status: c.status}
		assert.Equal(t, c.want, resp.httpStatusCode(), "status %s", c.status)
	}
}

func TestResponseBodyToJSONOk(t *testing.T) {
	resp := responseBody{
		status:  statusOK,
		result:  json.RawMessage(`42`),
		present: true,
		stdout:  "hi",
	}
	data, err := resp.toJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "OK", decoded["status"])
	assert.Equal(t, float64(42), decoded["result"])
	assert.Equal(t, "hi", decoded["stdout"])
}

func TestResponseBodyToJSONOkAbsent(t *testing.T) {
	resp := responseBody{status: statusOK, present: false}
	data, err := resp.toJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	result, ok := decoded["result"]
	require.True(t, ok)
	assert.Nil(t, result)
}

func TestResponseBodyToJSONOutOfFuel(t *testing.T) {
	resp := responseBody{status: statusOutOfFuel, stage: stageScript}
	data, err := resp.toJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "OUT_OF_FUEL", decoded["status"])
	assert.Equal(t, "SCRIPT", decoded["stage"])
	assert.Contains(t, decoded["message"], "CPU time")
}

func TestResponseBodyToJSONInvalidRequest(t *testing.T) {
	resp := responseBody{status: statusInvalidRequest, message: "bad input"}
	data, err := resp.toJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "INVALID_REQUEST", decoded["status"])
	assert.Equal(t, "bad input", decoded["message"])
	_, hasStage := decoded["stage"]
	assert.False(t, hasStage)
}
