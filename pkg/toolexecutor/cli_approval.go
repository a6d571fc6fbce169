package toolexecutor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// CLIApprovalHandler handles approval requests via CLI prompts
type CLIApprovalHandler struct {
	reader     io.Reader
	writer     io.Writer
	isTerminal func() bool
}

// NewCLIApprovalHandler creates a new CLI approval handler
func NewCLIApprovalHandler(reader io.Reader, writer io.Writer) *CLIApprovalHandler {
	return &CLIApprovalHandler{
		reader: reader,
		writer: writer,
	}
}

// NewTerminalApprovalHandler prompts on stdin/stdout and denies every request
// when stdin is not an interactive terminal.
func NewTerminalApprovalHandler() *CLIApprovalHandler {
	h := NewCLIApprovalHandler(os.Stdin, os.Stderr)
	h.isTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd()))
	}
	return h
}

// RequestApproval prompts the user for approval via CLI
func (c *CLIApprovalHandler) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	if c.isTerminal != nil && !c.isTerminal() {
		log.Warn().Str("tool", req.Tool).Msg("Stdin is not a terminal, denying approval")
		return ApprovalResponse{Approved: false, Reason: "no interactive terminal"}, nil
	}

	c.displayApprovalRequest(req)

	responseChan := make(chan ApprovalResponse, 1)
	errorChan := make(chan error, 1)

	go func() {
		response, err := c.readUserInput(req)
		if err != nil {
			errorChan <- err
		} else {
			responseChan <- response
		}
	}()

	select {
	case response := <-responseChan:
		return response, nil

	case err := <-errorChan:
		return ApprovalResponse{}, err

	case <-ctx.Done():
		c.displayTimeout()
		return ApprovalResponse{
			Approved: false,
			Reason:   "timeout",
		}, ctx.Err()
	}
}

// displayApprovalRequest displays the approval request to the user
func (c *CLIApprovalHandler) displayApprovalRequest(req ApprovalRequest) {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "  CONFIRMATION REQUIRED")
	fmt.Fprintln(c.writer, "")
	fmt.Fprintf(c.writer, "  %s\n", req.Prompt)

	if req.RunID != "" {
		fmt.Fprintf(c.writer, "  Run:        %s\n", req.RunID)
	}

	if caps := req.Metadata["capabilities"]; caps != "" {
		fmt.Fprintf(c.writer, "  Needs:      %s\n", caps)
	}

	var extra []string
	for key := range req.Metadata {
		if key != "capabilities" && key != "runId" && key != "tool" {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		fmt.Fprintf(c.writer, "  %s: %s\n", key, req.Metadata[key])
	}

	fmt.Fprintln(c.writer, "")
	fmt.Fprint(c.writer, "  Proceed? [y/N]: ")
}

// readUserInput reads and parses user input
func (c *CLIApprovalHandler) readUserInput(req ApprovalRequest) (ApprovalResponse, error) {
	scanner := bufio.NewScanner(c.reader)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return ApprovalResponse{}, fmt.Errorf("failed to read input: %w", err)
		}
		return ApprovalResponse{
			Approved: false,
			Reason:   "no input provided",
		}, nil
	}

	input := strings.TrimSpace(strings.ToLower(scanner.Text()))

	var response ApprovalResponse
	switch input {
	case "y", "yes":
		response = ApprovalResponse{
			Approved: true,
			Reason:   "approved by user",
		}
		fmt.Fprintln(c.writer, "  approved")

		log.Info().
			Str("tool", req.Tool).
			Msg("Tool approved via CLI")

	case "n", "no", "":
		response = ApprovalResponse{
			Approved: false,
			Reason:   "denied by user",
		}
		fmt.Fprintln(c.writer, "  denied")

		log.Info().
			Str("tool", req.Tool).
			Msg("Tool denied via CLI")

	default:
		response = ApprovalResponse{
			Approved: false,
			Reason:   fmt.Sprintf("invalid input: %s", input),
		}
		fmt.Fprintf(c.writer, "  invalid input %q, denying\n", input)

		log.Warn().
			Str("tool", req.Tool).
			Str("input", input).
			Msg("Invalid input for approval")
	}

	return response, nil
}

func (c *CLIApprovalHandler) displayTimeout() {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "  confirmation timed out")
}

// SetReader sets the input reader
func (c *CLIApprovalHandler) SetReader(reader io.Reader) {
	c.reader = reader
}

// SetWriter sets the output writer
func (c *CLIApprovalHandler) SetWriter(writer io.Writer) {
	c.writer = writer
}
