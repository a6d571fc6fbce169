package toolexecutor

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApprovalRequest() ApprovalRequest {
	return ApprovalRequest{
		Prompt: "Execute mutating tool: dedupe_files?",
		Tool:   "dedupe_files",
		RunID:  "run-42",
		Metadata: map[string]string{
			"tool":         "dedupe_files",
			"runId":        "run-42",
			"capabilities": "files.read,files.delete",
		},
	}
}

func TestCLIApprovalHandler_RequestApproval(t *testing.T) {
	tests := []struct {
		input    string
		approved bool
		reason   string
		output   string
	}{
		{input: "y\n", approved: true, reason: "approved by user", output: "approved"},
		{input: "yes\n", approved: true, reason: "approved by user", output: "approved"},
		{input: "YES\n", approved: true, reason: "approved by user", output: "approved"},
		{input: "n\n", reason: "denied by user", output: "denied"},
		{input: "no\n", reason: "denied by user", output: "denied"},
		{input: "\n", reason: "denied by user", output: "denied"},
		{input: "maybe\n", reason: "invalid input", output: "invalid input"},
		{input: "", reason: "no input provided"},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			writer := &bytes.Buffer{}
			handler := NewCLIApprovalHandler(strings.NewReader(tt.input), writer)

			response, err := handler.RequestApproval(context.Background(), testApprovalRequest())

			require.NoError(t, err)
			assert.Equal(t, tt.approved, response.Approved)
			assert.Contains(t, response.Reason, tt.reason)

			output := writer.String()
			assert.Contains(t, output, "CONFIRMATION REQUIRED")
			assert.Contains(t, output, "Execute mutating tool: dedupe_files?")
			assert.Contains(t, output, tt.output)
		})
	}
}

func TestCLIApprovalHandler_RequestApproval_Timeout(t *testing.T) {
	writer := &bytes.Buffer{}
	handler := NewCLIApprovalHandler(&blockingReader{}, writer)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	response, err := handler.RequestApproval(ctx, testApprovalRequest())

	assert.Error(t, err)
	assert.False(t, response.Approved)
	assert.Contains(t, response.Reason, "timeout")
	assert.Contains(t, writer.String(), "timed out")
}

func TestCLIApprovalHandler_NotATerminal(t *testing.T) {
	writer := &bytes.Buffer{}
	handler := NewCLIApprovalHandler(strings.NewReader("y\n"), writer)
	handler.isTerminal = func() bool { return false }

	response, err := handler.RequestApproval(context.Background(), testApprovalRequest())

	require.NoError(t, err)
	assert.False(t, response.Approved)
	assert.Equal(t, "no interactive terminal", response.Reason)
	assert.Empty(t, writer.String())
}

func TestCLIApprovalHandler_DisplayApprovalRequest(t *testing.T) {
	writer := &bytes.Buffer{}
	handler := &CLIApprovalHandler{writer: writer}

	req := testApprovalRequest()
	req.Metadata["dest"] = "/tmp/out"
	handler.displayApprovalRequest(req)

	output := writer.String()
	assert.Contains(t, output, "run-42")
	assert.Contains(t, output, "files.read,files.delete")
	assert.Contains(t, output, "dest: /tmp/out")
	assert.Contains(t, output, "[y/N]")
}

func TestCLIApprovalHandler_SetReaderWriter(t *testing.T) {
	handler := &CLIApprovalHandler{}

	reader := strings.NewReader("test")
	writer := &bytes.Buffer{}

	handler.SetReader(reader)
	handler.SetWriter(writer)

	assert.Equal(t, reader, handler.reader)
	assert.Equal(t, writer, handler.writer)
}

// blockingReader is a reader that never returns
type blockingReader struct{}

func (b *blockingReader) Read(p []byte) (n int, err error) {
	select {}
}
