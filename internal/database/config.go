package database

import (
	"errors"
	"fmt"
	"time"
)

// Target identifies one MySQL server a run backs up
type Target struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" yaml:"port"`
	User     string        `mapstructure:"user" yaml:"user"`
	Password string        `mapstructure:"password" yaml:"password"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Validate checks if the target has all required parameters
func (t *Target) Validate() error {
	var errs []error

	if t.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}

	if t.Port <= 0 || t.Port > 65535 {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}

	if t.User == "" {
		errs = append(errs, errors.New("user is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("target validation failed: %v", errs)
	}

	return nil
}

// SetDefaults sets default values for the target
func (t *Target) SetDefaults() {
	if t.Port == 0 {
		t.Port = 3306
	}
	if t.Timeout == 0 {
		t.Timeout = 30 * time.Second
	}
}

// Addr returns the host:port pair
func (t *Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// DSN returns the Data Source Name for a MySQL connection. An empty
// database connects without selecting a schema, which is what the
// enumeration query needs.
func (t *Target) DSN(database string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?timeout=%s&parseTime=true",
		t.User, t.Password, t.Host, t.Port, database, t.Timeout)
}

// Redacted renders the target for logs without the password
func (t *Target) Redacted() string {
	return fmt.Sprintf("%s@%s", t.User, t.Addr())
}
