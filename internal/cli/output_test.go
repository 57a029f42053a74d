package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeLoadFailed, "scenario files failed to load", []string{"a.yaml: name is required"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E004", resp.Error.Code)
	assert.Equal(t, []any{"a.yaml: name is required"}, resp.Error.Details)
}

func TestOutputFormatter_TextErrorListsStringDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Error(ErrCodeLoadFailed, "2 scenario files failed to load", []string{"a.yaml: bad", "b.yaml: worse"})
	require.NoError(t, err)
	assert.Equal(t, "Error [E004]: 2 scenario files failed to load\n  a.yaml: bad\n  b.yaml: worse\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: verbose}

		require.NoError(t, formatter.Error(ErrCodeGeneric, "boom", map[string]string{"file": "x"}))
		assert.Contains(t, buf.String(), "Error [E001]: boom")
		if verbose {
			assert.Contains(t, buf.String(), "Details:")
		} else {
			assert.NotContains(t, buf.String(), "Details:")
		}
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("found %d file(s)", 3)
	assert.Empty(t, out.String())
	assert.Equal(t, "found 3 file(s)\n", errOut.String())

	quiet := &OutputFormatter{Format: "text", Writer: out}
	quiet.VerboseLog("hidden")
	assert.Empty(t, out.String())
}
