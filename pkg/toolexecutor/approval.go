package toolexecutor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ApprovalRequest describes a mutating action awaiting confirmation
type ApprovalRequest struct {
	Prompt   string            `json:"prompt"`
	Tool     string            `json:"tool"`
	RunID    string            `json:"runId"`
	Timeout  time.Duration     `json:"timeout"`
	Metadata map[string]string `json:"metadata"`
}

// ApprovalResponse represents the response to an approval request
type ApprovalResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// ApprovalHandler is the confirmer: a yes/no gate that may block
type ApprovalHandler interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)
}

// ApprovalHandlerFunc adapts a function to ApprovalHandler
type ApprovalHandlerFunc func(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)

// RequestApproval implements ApprovalHandler
func (f ApprovalHandlerFunc) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	return f(ctx, req)
}

// DefaultApprovalTimeout bounds a confirmation when no timeout is configured
const DefaultApprovalTimeout = 60 * time.Second

// ApprovalManager bounds confirmation requests with a timeout
type ApprovalManager struct {
	defaultTimeout time.Duration
}

// NewApprovalManager creates an approval manager. A non-positive timeout
// uses DefaultApprovalTimeout.
func NewApprovalManager(defaultTimeout time.Duration) *ApprovalManager {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultApprovalTimeout
	}
	return &ApprovalManager{defaultTimeout: defaultTimeout}
}

// RequestApproval asks handler for approval.
// Returns true if approved, false if denied.
// Returns error if the handler fails, panics or does not answer in time.
func (am *ApprovalManager) RequestApproval(ctx context.Context, handler ApprovalHandler, req ApprovalRequest) (bool, error) {
	if handler == nil {
		return false, fmt.Errorf("no approval handler configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = am.defaultTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info().
		Str("tool", req.Tool).
		Str("run_id", req.RunID).
		Msg("Requesting approval")

	responseChan := make(chan ApprovalResponse, 1)
	errorChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errorChan <- fmt.Errorf("confirmer panicked: %v", r)
			}
		}()
		response, err := handler.RequestApproval(timeoutCtx, req)
		if err != nil {
			errorChan <- err
		} else {
			responseChan <- response
		}
	}()

	select {
	case response := <-responseChan:
		if response.Approved {
			log.Info().
				Str("tool", req.Tool).
				Str("reason", response.Reason).
				Msg("Approval granted")
		} else {
			log.Warn().
				Str("tool", req.Tool).
				Str("reason", response.Reason).
				Msg("Approval denied")
		}
		return response.Approved, nil

	case err := <-errorChan:
		log.Error().
			Err(err).
			Str("tool", req.Tool).
			Msg("Approval request failed")
		return false, fmt.Errorf("approval request failed: %w", err)

	case <-timeoutCtx.Done():
		log.Warn().
			Str("tool", req.Tool).
			Dur("timeout", timeout).
			Msg("Approval request timed out")
		return false, fmt.Errorf("approval request timed out after %v", timeout)
	}
}

// MockApprovalHandler is a mock handler for testing
type MockApprovalHandler struct {
	AutoApprove bool
	Response    ApprovalResponse
	Delay       time.Duration
	Error       error

	Requests []ApprovalRequest
}

// RequestApproval implements ApprovalHandler
func (m *MockApprovalHandler) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	m.Requests = append(m.Requests, req)

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ApprovalResponse{}, ctx.Err()
		}
	}

	if m.Error != nil {
		return ApprovalResponse{}, m.Error
	}

	if m.AutoApprove {
		return ApprovalResponse{
			Approved: true,
			Reason:   "auto-approved",
		}, nil
	}

	return m.Response, nil
}
