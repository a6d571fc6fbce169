package toolexecutor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApprovalManager(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{name: "zero uses default", timeout: 0, want: DefaultApprovalTimeout},
		{name: "negative uses default", timeout: -time.Second, want: DefaultApprovalTimeout},
		{name: "configured", timeout: 5 * time.Minute, want: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			am := NewApprovalManager(tt.timeout)
			require.NotNil(t, am)
			assert.Equal(t, tt.want, am.defaultTimeout)
		})
	}
}

func TestApprovalManager_RequestApproval(t *testing.T) {
	tests := []struct {
		name     string
		handler  *MockApprovalHandler
		approved bool
		errText  string
	}{
		{
			name:     "approved",
			handler:  &MockApprovalHandler{Response: ApprovalResponse{Approved: true, Reason: "ok"}},
			approved: true,
		},
		{
			name:    "denied",
			handler: &MockApprovalHandler{Response: ApprovalResponse{Approved: false, Reason: "no"}},
		},
		{
			name:    "handler error",
			handler: &MockApprovalHandler{Error: errors.New("handler error")},
			errText: "handler error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			am := NewApprovalManager(0)

			approved, err := am.RequestApproval(context.Background(), tt.handler, ApprovalRequest{
				Prompt: "Execute mutating tool: move_files?",
				Tool:   "move_files",
				RunID:  "run-1",
			})

			if tt.errText != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.approved, approved)
			require.Len(t, tt.handler.Requests, 1)
			assert.Equal(t, "move_files", tt.handler.Requests[0].Tool)
		})
	}
}

func TestApprovalManager_RequestApproval_Timeout(t *testing.T) {
	handler := &MockApprovalHandler{Delay: 2 * time.Second}
	am := NewApprovalManager(100 * time.Millisecond)

	approved, err := am.RequestApproval(context.Background(), handler, ApprovalRequest{Tool: "sleep"})

	require.Error(t, err)
	assert.False(t, approved)
	assert.Contains(t, err.Error(), "timed out")
}

func TestApprovalManager_CustomTimeout(t *testing.T) {
	handler := &MockApprovalHandler{
		Delay:    50 * time.Millisecond,
		Response: ApprovalResponse{Approved: true, Reason: "approved"},
	}
	am := NewApprovalManager(10 * time.Millisecond)

	approved, err := am.RequestApproval(context.Background(), handler, ApprovalRequest{
		Tool:    "test",
		Timeout: 500 * time.Millisecond,
	})

	require.NoError(t, err)
	assert.True(t, approved)
}

func TestApprovalManager_NoHandler(t *testing.T) {
	am := NewApprovalManager(0)

	approved, err := am.RequestApproval(context.Background(), nil, ApprovalRequest{Tool: "test"})

	require.Error(t, err)
	assert.False(t, approved)
	assert.Contains(t, err.Error(), "no approval handler")
}

func TestApprovalManager_BuiltinHandlers(t *testing.T) {
	am := NewApprovalManager(0)

	approved, err := am.RequestApproval(context.Background(), AutoApproveHandler{}, ApprovalRequest{Tool: "x"})
	require.NoError(t, err)
	assert.True(t, approved)

	approved, err = am.RequestApproval(context.Background(), DenyAllHandler{}, ApprovalRequest{Tool: "x"})
	require.NoError(t, err)
	assert.False(t, approved)
}

func TestApprovalManager_PanickingHandler(t *testing.T) {
	am := NewApprovalManager(0)
	crashing := ApprovalHandlerFunc(func(context.Context, ApprovalRequest) (ApprovalResponse, error) {
		panic("confirmer crashed")
	})

	var (
		approved bool
		err      error
	)
	require.NotPanics(t, func() {
		approved, err = am.RequestApproval(context.Background(), crashing, ApprovalRequest{Tool: "move_files"})
	})
	require.Error(t, err)
	assert.False(t, approved)
	assert.Contains(t, err.Error(), "confirmer crashed")
}

func TestApprovalHandlerFunc(t *testing.T) {
	var got ApprovalRequest
	h := ApprovalHandlerFunc(func(_ context.Context, req ApprovalRequest) (ApprovalResponse, error) {
		got = req
		return ApprovalResponse{Approved: true}, nil
	})

	resp, err := h.RequestApproval(context.Background(), ApprovalRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.Equal(t, "p", got.Prompt)
}

func TestMockApprovalHandler_ContextCancellation(t *testing.T) {
	handler := &MockApprovalHandler{Delay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.RequestApproval(ctx, ApprovalRequest{Tool: "test"})

	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
