package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"vahan/internal/core/lookup"
)

var (
	// ErrTimeout means the lookup process was killed at the deadline.
	ErrTimeout = errors.New("lookup process timed out")
	// ErrMalformedOutput means the process exited cleanly without printing
	// a result record.
	ErrMalformedOutput = errors.New("lookup process printed no valid result")
)

// ExitError is a lookup process that exited nonzero.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("lookup process exited with code %d", e.Code)
}

// Runner spawns one lookup process per call.
type Runner struct {
	// Command is the executable followed by any leading arguments, e.g.
	// ["/usr/local/bin/vahan", "lookup"].
	Command []string
	Env     []string
	Timeout time.Duration
	// WaitDelay is the grace period between SIGTERM to the child's process
	// group and the hard kill.
	WaitDelay time.Duration
}

func NewRunner(command []string, timeout time.Duration) *Runner {
	return &Runner{
		Command:   command,
		Timeout:   timeout,
		WaitDelay: 5 * time.Second,
	}
}

func (r *Runner) Run(ctx context.Context, requestID, reg, chassis string) (lookup.Result, error) {
	if r == nil || len(r.Command) == 0 || strings.TrimSpace(r.Command[0]) == "" {
		return lookup.Result{}, fmt.Errorf("lookup command is not configured")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, r.Command[1:]...)
	if requestID != "" {
		args = append(args, "--request-id", requestID)
	}
	args = append(args, "--", reg, chassis)

	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.WaitDelay = r.WaitDelay
	startInGroup(cmd)

	// One buffer for both streams: exec serialises writes when Stdout and
	// Stderr are the same writer.
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() != nil {
		killGroup(cmd)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return lookup.Result{}, ErrTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return lookup.Result{}, &ExitError{Code: exitErr.ExitCode(), Output: strings.TrimSpace(out.String())}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return lookup.Result{}, ctxErr
		}
		return lookup.Result{}, fmt.Errorf("run lookup process: %w", err)
	}

	return ParseOutput(out.Bytes())
}

// ParseOutput extracts the result record from captured process output. The
// record is the last line holding a JSON object; anything before it is
// diagnostics from the child.
func ParseOutput(output []byte) (lookup.Result, error) {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "{") {
			break
		}
		var res lookup.Result
		if err := json.Unmarshal([]byte(line), &res); err != nil {
			return lookup.Result{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return res, nil
	}
	return lookup.Result{}, ErrMalformedOutput
}
