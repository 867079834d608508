package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ===================
// Command Execution Utilities
// ===================

// ExitError reports a non-zero exit of an external command together with
// whatever it wrote to stderr.
type ExitError struct {
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Stderr)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecContext executes a command with timeout and context support, feeding
// stdin to the process and returning its stdout.
//
// Example:
//
//	output, err := ExecContext(ctx, 30*time.Second, "", payload, "confluence", "page", "upsert")
func ExecContext(ctx context.Context, timeout time.Duration, workDir string, stdin []byte, name string, args ...string) ([]byte, error) {
	// Create context with timeout if specified
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitErr := &ExitError{Code: -1, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitErr.Code = ee.ExitCode()
		}
		if ctx.Err() != nil {
			exitErr.Err = fmt.Errorf("%w: %v", err, ctx.Err())
		}
		return nil, exitErr
	}

	return stdout.Bytes(), nil
}

// ParseLines splits command output into non-empty, trimmed lines.
func ParseLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}
