package database

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/VGXConsulting/BackupDB/internal/errors"
	"github.com/VGXConsulting/BackupDB/internal/logging"

	"github.com/bmatcuk/doublestar"
	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// systemSchemas are never part of a backup run
var systemSchemas = map[string]bool{
	"information_schema": true,
	"performance_schema": true,
	"mysql":              true,
	"sys":                true,
}

// DatabaseService defines the interface for database operations
type DatabaseService interface {
	Connect(ctx context.Context, target Target) (*sql.DB, error)
	TestConnection(ctx context.Context, db *sql.DB) error
	Close(db *sql.DB) error
	GetVersion(ctx context.Context, db *sql.DB) (string, error)
	ListDatabases(ctx context.Context, db *sql.DB) ([]string, error)
}

// Service implements the DatabaseService interface
type Service struct {
	connectionTimeout time.Duration
	logger            *logging.Logger
}

// NewService creates a new database service with default settings
func NewService() *Service {
	return &Service{
		connectionTimeout: 30 * time.Second,
		logger:            logging.NewDefaultLogger(),
	}
}

// NewServiceWithLogger creates a new database service with a custom logger
func NewServiceWithLogger(logger *logging.Logger) *Service {
	return &Service{
		connectionTimeout: 30 * time.Second,
		logger:            logger,
	}
}

// Connect opens a connection to the target server without selecting a
// schema. Connection failures surface immediately, there is no retry:
// a host that is down fails all its databases and the run moves on.
func (s *Service) Connect(ctx context.Context, target Target) (*sql.DB, error) {
	startTime := time.Now()

	s.logger.WithFields(map[string]interface{}{
		"host": target.Host,
		"port": target.Port,
		"user": target.User,
	}).Info("Attempting database connection")

	dsn := target.DSN("")
	s.logger.WithField("dsn", logging.SanitizeDSN(dsn)).Debug("Opening connection pool")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	err = s.TestConnection(ctx, db)

	duration := time.Since(startTime)
	s.logger.LogDatabaseConnection(target.Host, "", err == nil, duration, err)

	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// TestConnection verifies that the database connection is working
func (s *Service) TestConnection(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return errors.WrapError(err, "failed to ping database")
	}

	s.logger.Debug("Database connection test successful")
	return nil
}

// Close gracefully closes the database connection
func (s *Service) Close(db *sql.DB) error {
	if db == nil {
		return nil
	}

	if err := db.Close(); err != nil {
		s.logger.WithField("error", err.Error()).Error("Failed to close database connection")
		return errors.WrapError(err, "failed to close database connection")
	}

	return nil
}

// GetVersion retrieves the MySQL server version
func (s *Service) GetVersion(ctx context.Context, db *sql.DB) (string, error) {
	if db == nil {
		return "", errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	var version string
	if err := db.QueryRowContext(queryCtx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", errors.WrapError(err, "failed to get database version")
	}

	s.logger.WithField("version", version).Debug("Retrieved database version")
	return version, nil
}

// ListDatabases enumerates the user databases on the server. System
// schemas are filtered out and the result is sorted for stable runs.
func (s *Service) ListDatabases(ctx context.Context, db *sql.DB) ([]string, error) {
	if db == nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, "SHOW DATABASES")
	if err != nil {
		return nil, errors.WrapError(err, "failed to list databases")
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WrapError(err, "failed to scan database name")
		}
		if systemSchemas[name] {
			continue
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, "failed to read database list")
	}

	sort.Strings(databases)

	s.logger.WithField("count", len(databases)).Debug("Enumerated user databases")
	return databases, nil
}

// FilterDatabases drops names matching any of the exclusion patterns.
// Patterns use glob syntax, so "test_*" or "*_staging" both work.
func FilterDatabases(databases []string, excludePatterns []string) ([]string, error) {
	if len(excludePatterns) == 0 {
		return databases, nil
	}

	var kept []string
	for _, name := range databases {
		excluded := false
		for _, pattern := range excludePatterns {
			match, err := doublestar.Match(pattern, name)
			if err != nil {
				return nil, errors.NewAppError(errors.ErrorTypeValidation,
					"invalid exclude pattern: "+pattern, err)
			}
			if match {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, name)
		}
	}

	return kept, nil
}

// IsSystemSchema reports whether the named database belongs to the server
func IsSystemSchema(name string) bool {
	return systemSchemas[name]
}
