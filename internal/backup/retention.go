package backup

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// RetentionResult summarizes a single pruning pass over one artifact store
type RetentionResult struct {
	Scope    string        `json:"scope"`
	Examined int           `json:"examined"`
	Kept     int           `json:"kept"`
	Removed  []string      `json:"removed,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	DryRun   bool          `json:"dry_run"`
	Duration time.Duration `json:"duration"`
}

// HasErrors returns true if any deletion failed during the pass
func (r *RetentionResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// RetentionPolicy applies the configured age cutoff to artifact sets
type RetentionPolicy struct {
	config RetentionConfig
	clock  Clock
}

// NewRetentionPolicy creates a policy from the given configuration
func NewRetentionPolicy(config RetentionConfig) *RetentionPolicy {
	return &RetentionPolicy{
		config: config,
		clock:  SystemClock{},
	}
}

// WithClock overrides the time source, primarily for tests
func (rp *RetentionPolicy) WithClock(clock Clock) *RetentionPolicy {
	rp.clock = clock
	return rp
}

// Enabled reports whether the policy removes anything at all.
// A zero day count keeps artifacts forever.
func (rp *RetentionPolicy) Enabled() bool {
	return rp.config.Days > 0
}

// Cutoff returns the oldest calendar day the policy retains
func (rp *RetentionPolicy) Cutoff(now time.Time) time.Time {
	return truncateToDay(now).AddDate(0, 0, -rp.config.Days)
}

// Plan partitions artifacts into keepers and deletion candidates.
// The newest MinKeep artifacts of every database survive regardless of
// age so change detection always has a baseline to compare against.
func (rp *RetentionPolicy) Plan(artifacts []Artifact, now time.Time) (keep, remove []Artifact) {
	if !rp.Enabled() || len(artifacts) == 0 {
		return artifacts, nil
	}

	cutoff := rp.Cutoff(now)
	minKeep := rp.config.MinKeep
	if minKeep < 1 {
		minKeep = 1
	}

	byDatabase := make(map[string][]Artifact)
	for _, artifact := range artifacts {
		byDatabase[artifact.Database] = append(byDatabase[artifact.Database], artifact)
	}

	keepSet := make(map[string]bool)
	for _, group := range byDatabase {
		sort.Slice(group, func(i, j int) bool {
			if !group[i].Date.Equal(group[j].Date) {
				return group[i].Date.After(group[j].Date)
			}
			return group[i].Name < group[j].Name
		})
		for i, artifact := range group {
			if i < minKeep || !artifact.Date.Before(cutoff) {
				keepSet[artifact.Name] = true
			}
		}
	}

	for _, artifact := range artifacts {
		if keepSet[artifact.Name] {
			keep = append(keep, artifact)
		} else {
			remove = append(remove, artifact)
		}
	}

	return keep, remove
}

// PruneArchive removes expired artifacts from the local archive.
// Deletion failures are collected in the result and do not stop the pass.
func (rp *RetentionPolicy) PruneArchive(archive *Archive, dryRun bool) (*RetentionResult, error) {
	start := time.Now()
	result := &RetentionResult{
		Scope:  "archive",
		DryRun: dryRun,
	}

	artifacts, err := archive.List()
	if err != nil {
		return nil, NewRetentionError("failed to list archive artifacts", err)
	}

	keep, remove := rp.Plan(artifacts, rp.clock.Now())
	result.Examined = len(artifacts)
	result.Kept = len(keep)

	for _, artifact := range remove {
		if dryRun {
			result.Removed = append(result.Removed, artifact.Name)
			continue
		}
		if err := archive.Remove(artifact.Name); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", artifact.Name, err))
			continue
		}
		result.Removed = append(result.Removed, artifact.Name)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// PruneBackend removes expired artifacts from a storage backend. Objects
// whose names do not follow the artifact naming scheme are left alone.
func (rp *RetentionPolicy) PruneBackend(ctx context.Context, backend Backend, dryRun bool) (*RetentionResult, error) {
	start := time.Now()
	result := &RetentionResult{
		Scope:  backend.Name(),
		DryRun: dryRun,
	}

	remotes, err := backend.List(ctx)
	if err != nil {
		return nil, NewRetentionError(fmt.Sprintf("failed to list %s artifacts", backend.Name()), err)
	}

	var artifacts []Artifact
	for _, remote := range remotes {
		artifact, err := ParseArtifactName(remote.Name)
		if err != nil {
			continue
		}
		artifact.Size = remote.Size
		artifacts = append(artifacts, artifact)
	}

	keep, remove := rp.Plan(artifacts, rp.clock.Now())
	result.Examined = len(artifacts)
	result.Kept = len(keep)

	for _, artifact := range remove {
		if dryRun {
			result.Removed = append(result.Removed, artifact.Name)
			continue
		}
		if err := backend.Delete(ctx, artifact.Name); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", artifact.Name, err))
			continue
		}
		result.Removed = append(result.Removed, artifact.Name)
	}

	result.Duration = time.Since(start)
	return result, nil
}
