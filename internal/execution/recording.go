package execution

import (
	"context"
	"fmt"
	"strings"
)

// RecordingRunner is a Runner for tests. It records every spec it
// receives and replays scripted results instead of running anything.
type RecordingRunner struct {
	Commands []CommandSpec

	// OnRun, when set, produces the result for each call
	OnRun func(spec CommandSpec) (*CommandResult, error)

	// MissingBinaries makes LookPath fail for the named binaries
	MissingBinaries map[string]bool

	queued []scriptedResponse
}

type scriptedResponse struct {
	result *CommandResult
	err    error
}

// NewRecordingRunner creates an empty recording runner
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{}
}

// Queue appends a scripted response consumed by the next Run call
func (r *RecordingRunner) Queue(result *CommandResult, err error) {
	r.queued = append(r.queued, scriptedResponse{result: result, err: err})
}

// Run records the spec and replays the next scripted response
func (r *RecordingRunner) Run(ctx context.Context, spec CommandSpec) (*CommandResult, error) {
	r.Commands = append(r.Commands, spec)

	if r.OnRun != nil {
		return r.OnRun(spec)
	}

	if len(r.queued) > 0 {
		next := r.queued[0]
		r.queued = r.queued[1:]
		if next.result != nil && next.result.Stdout != "" && spec.Stdout != nil {
			fmt.Fprint(spec.Stdout, next.result.Stdout)
		}
		return next.result, next.err
	}

	return &CommandResult{Binary: spec.Binary, Args: spec.Args}, nil
}

// LookPath resolves every binary unless listed as missing
func (r *RecordingRunner) LookPath(binary string) (string, error) {
	if r.MissingBinaries[binary] {
		return "", fmt.Errorf("%s not found in PATH", binary)
	}
	return "/usr/bin/" + binary, nil
}

// CommandLines renders recorded invocations for assertions
func (r *RecordingRunner) CommandLines() []string {
	lines := make([]string, 0, len(r.Commands))
	for _, spec := range r.Commands {
		lines = append(lines, strings.TrimSpace(spec.Binary+" "+strings.Join(spec.Args, " ")))
	}
	return lines
}
