package backup

import (
	"context"
	"time"
)

// Backend abstracts artifact storage for different provider types
type Backend interface {
	// Name returns the provider identifier used in logs and reports
	Name() string

	// Validate checks that the backend is reachable and writable before a run
	Validate(ctx context.Context) error

	// Store uploads the artifact at localPath under the given name
	Store(ctx context.Context, localPath string, name string) error

	// Fetch downloads the named artifact to destPath
	Fetch(ctx context.Context, name string, destPath string) error

	// List returns the artifacts currently held by the backend
	List(ctx context.Context) ([]RemoteArtifact, error)

	// Delete removes the named artifact from the backend
	Delete(ctx context.Context, name string) error
}

// Enumerator resolves the set of databases a run should back up
type Enumerator interface {
	ListDatabases(ctx context.Context) ([]string, error)
}

// Dumper produces a logical dump of a single database
type Dumper interface {
	// Dump writes the dump of the named database to destPath and
	// returns the number of bytes written
	Dump(ctx context.Context, database string, destPath string) (int64, error)
}

// Notifier delivers run outcomes to an external channel
type Notifier interface {
	Notify(ctx context.Context, report *RunReport) error
}

// Clock supplies the current time so runs and tests can pin it
type Clock interface {
	Now() time.Time
}

// SystemClock is the Clock used outside of tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
