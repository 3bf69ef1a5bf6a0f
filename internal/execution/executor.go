package execution

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/VGXConsulting/BackupDB/internal/logging"
)

// CommandSpec describes one external command invocation
type CommandSpec struct {
	Binary string
	Args   []string

	// Dir is the working directory, empty means the process default
	Dir string

	// Env holds extra KEY=VALUE entries appended to the current environment.
	// Secrets travel here so they never show up in process listings.
	Env []string

	// Stdin feeds the command when set
	Stdin io.Reader

	// Stdout receives standard output when set, otherwise output is captured
	Stdout io.Writer

	// Timeout bounds the command runtime when greater than zero
	Timeout time.Duration
}

// CommandResult captures the outcome of a completed command
type CommandResult struct {
	Binary   string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes external commands
type Runner interface {
	Run(ctx context.Context, spec CommandSpec) (*CommandResult, error)
	LookPath(binary string) (string, error)
}

// SystemRunner runs commands on the host through os/exec
type SystemRunner struct {
	logger *logging.Logger
}

// NewRunner creates a runner that logs through the given logger
func NewRunner(logger *logging.Logger) *SystemRunner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SystemRunner{logger: logger}
}

// LookPath resolves a binary on PATH
func (r *SystemRunner) LookPath(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", binary, err)
	}
	return path, nil
}

// Run executes the command described by spec. Standard error is always
// captured and folded into the returned error on failure.
func (r *SystemRunner) Run(ctx context.Context, spec CommandSpec) (*CommandResult, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}

	var stdout, stderr bytes.Buffer
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	r.logger.WithFields(map[string]interface{}{
		"binary": spec.Binary,
		"args":   strings.Join(spec.Args, " "),
		"dir":    spec.Dir,
	}).Debug("Executing command")

	startTime := time.Now()
	err := cmd.Run()

	result := &CommandResult{
		Binary:   spec.Binary,
		Args:     spec.Args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s timed out after %s: %w", spec.Binary, result.Duration.Round(time.Millisecond), ctxErr)
		}
		return result, commandError(spec.Binary, err, result.Stderr)
	}

	r.logger.WithFields(map[string]interface{}{
		"binary":   spec.Binary,
		"duration": result.Duration.String(),
	}).Debug("Command completed")

	return result, nil
}

// commandError builds a failure error carrying the stderr tail
func commandError(binary string, err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		return fmt.Errorf("%s failed: %w", binary, err)
	}
	return fmt.Errorf("%s failed: %w: %s", binary, err, lastLines(detail, 5))
}

// lastLines returns at most n trailing lines of s
func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
