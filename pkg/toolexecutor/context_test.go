package toolexecutor

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewExecutionContext(t *testing.T) {
	ec := NewExecutionContext("clean my downloads")

	assert.NotEmpty(t, ec.Cwd)
	assert.Equal(t, runtime.GOOS, ec.Platform)
	assert.Equal(t, "clean my downloads", ec.UserPrompt)
	assert.Len(t, ec.RunID, 36)
	assert.Nil(t, ec.Policy)
	assert.NotNil(t, ec.Logger)
}

func TestExecutionContext_Log(t *testing.T) {
	var nilCtx *ExecutionContext
	assert.NotPanics(t, func() { nilCtx.Log("x", nil) })

	ec := &ExecutionContext{}
	assert.NotPanics(t, func() { ec.Log("x", nil) })

	ec.Logger = func(string, map[string]interface{}) { panic("sink closed") }
	assert.NotPanics(t, func() { ec.Log("x", nil) })
}

func TestExecutionContext_WorkingDir(t *testing.T) {
	assert.Equal(t, "/srv", (&ExecutionContext{Cwd: "/srv"}).WorkingDir())
	assert.NotEmpty(t, (&ExecutionContext{}).WorkingDir())
}
