package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEvaluate(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"evaluate"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestEvaluateCommand(t *testing.T) {
	out, err := runEvaluate(t, "", "--gas", "2500")
	require.NoError(t, err)
	assert.Contains(t, out, `"level": "DANGER"`)
	assert.Contains(t, out, `"type": "gas"`)

	out, err = runEvaluate(t, `{"temp":"65"}`, "--json", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"level": "CRITICAL"`)
	assert.Contains(t, out, `"type": "fire"`)

	_, err = runEvaluate(t, "")
	assert.ErrorIs(t, err, errNoReading)

	_, err = runEvaluate(t, "", "--json", "[1,2]")
	assert.Error(t, err)
}
