package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/VGXConsulting/BackupDB/internal/execution"
	"github.com/VGXConsulting/BackupDB/internal/logging"
)

// Check is the outcome of one preflight verification.
type Check struct {
	Name   string
	Detail string
	Err    error
}

// Passed reports whether the check succeeded.
func (c Check) Passed() bool {
	return c.Err == nil
}

// CheckFunc probes one aspect of the system. The returned detail is shown
// next to the check name when the probe succeeds.
type CheckFunc func(ctx context.Context) (string, error)

type namedCheck struct {
	name string
	fn   CheckFunc
}

// Preflight runs an ordered list of named checks. It backs the --test-config
// flag: everything a run would need is probed without backing anything up.
type Preflight struct {
	logger *logging.Logger
	checks []namedCheck
}

// NewPreflight creates an empty preflight.
func NewPreflight(logger *logging.Logger) *Preflight {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Preflight{logger: logger}
}

// Add registers a check under a display name.
func (p *Preflight) Add(name string, fn CheckFunc) *Preflight {
	p.checks = append(p.checks, namedCheck{name: name, fn: fn})
	return p
}

// Run executes every check in order and returns all outcomes. A failing
// check does not stop the pass so the operator sees the full picture.
func (p *Preflight) Run(ctx context.Context) []Check {
	results := make([]Check, 0, len(p.checks))

	for _, check := range p.checks {
		detail, err := check.fn(ctx)
		results = append(results, Check{Name: check.name, Detail: detail, Err: err})

		if err != nil {
			p.logger.WithField("check", check.name).WithError(err).Debug("Preflight check failed")
		} else {
			p.logger.WithField("check", check.name).Debug("Preflight check passed")
		}
	}

	return results
}

// ChecksPassed reports whether every check in the list succeeded.
func ChecksPassed(checks []Check) bool {
	for _, check := range checks {
		if !check.Passed() {
			return false
		}
	}
	return true
}

// ConfigCheck validates the complete configuration structure.
func ConfigCheck(config *SystemConfig) CheckFunc {
	return func(ctx context.Context) (string, error) {
		if err := config.Validate(); err != nil {
			return "", err
		}

		detail := fmt.Sprintf("storage=%s compression=%s retention=%dd",
			strings.ToLower(string(config.Storage.Provider)),
			strings.ToLower(string(config.Compression.Algorithm)),
			config.Retention.Days)
		if config.Encryption.Enabled {
			detail += " encrypted"
		}
		return detail, nil
	}
}

// ArchiveCheck verifies the archive directory can be created and written.
func ArchiveCheck(dir string) CheckFunc {
	return func(ctx context.Context) (string, error) {
		archive, err := NewArchive(dir)
		if err != nil {
			return "", err
		}

		probe, err := archive.TempFile(".write-probe-*")
		if err != nil {
			return "", err
		}
		probe.Close()
		removeQuietly(probe.Name())

		artifacts, err := archive.List()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (%d artifacts)", dir, len(artifacts)), nil
	}
}

// BinaryCheck verifies that the named binaries are resolvable on PATH.
func BinaryCheck(runner execution.Runner, binaries ...string) CheckFunc {
	return func(ctx context.Context) (string, error) {
		paths := make([]string, 0, len(binaries))
		for _, binary := range binaries {
			path, err := runner.LookPath(binary)
			if err != nil {
				return "", err
			}
			paths = append(paths, path)
		}
		return strings.Join(paths, ", "), nil
	}
}

// BackendCheck verifies the storage backend is reachable and usable.
func BackendCheck(backend Backend) CheckFunc {
	return func(ctx context.Context) (string, error) {
		if err := backend.Validate(ctx); err != nil {
			return "", err
		}
		return backend.Name(), nil
	}
}
