package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengzui/Pinq/internal/compiler"
	"github.com/mengzui/Pinq/internal/request"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]any{"value": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"value": 3.0}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E204", "unknown operation", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E204", resp.Error.Code)
	assert.Equal(t, "unknown operation", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	tests := []struct {
		data any
		want string
	}{
		{"Loaded", "Loaded\n"},
		{[]any{int64(1), "a"}, "[1,\"a\"]\n"},
		{map[string]any{"b": 1, "a": nil}, "{\"a\":null,\"b\":1}\n"},
		{LoadResult{Target: "table t", Rows: 2}, "Loaded 2 row(s) into table t\n"},
	}
	for _, tt := range tests {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, formatter.Success(tt.data))
		assert.Equal(t, tt.want, buf.String())
	}
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("E_COMMAND", "no database", "path=/x"))
	assert.Equal(t, "Error [E_COMMAND]: no database\nDetails: path=/x\n", buf.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"compile error", &compiler.CompileError{Code: compiler.ErrUnknownOperation, Field: "ops[0]", Message: "bad"}, compiler.ErrUnknownOperation, ExitCommandError},
		{"request error", request.NewEmptySequenceError(request.KindFirst), string(request.ErrCodeEmptySequence), ExitFailure},
		{"other", errors.New("boom"), ErrCodeCommand, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail("request failed", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.True(t, errors.Is(err, tt.err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}

	formatter.VerboseLog("hidden")
	assert.Empty(t, errOut.String())

	formatter.Verbose = true
	formatter.VerboseLog("warning: %s", "opaque")
	assert.Equal(t, "warning: opaque\n", errOut.String())
	assert.Empty(t, out.String())
}

func TestExitError(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open database", inner)
	assert.Equal(t, "failed to open database: disk full", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, "x", NewExitError(ExitFailure, "x").Error())
}
