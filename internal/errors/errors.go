package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeConnection represents database connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeSQL represents SQL execution errors
	ErrorTypeSQL ErrorType = "sql"
	// ErrorTypeDump represents dump tool errors
	ErrorTypeDump ErrorType = "dump"
	// ErrorTypeStorage represents storage backend errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypePermission represents permission/access errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption represents user interruption
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// Process exit codes. Partial failures leave the run alive for the
// remaining databases, configuration problems abort before any work.
const (
	ExitSuccess = 0
	ExitPartial = 1
	ExitConfig  = 2
)

// AppError represents an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}

	// Recoverable errors fail the current database but let the run
	// continue with the remaining ones
	Recoverable bool
	UserMessage string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// IsRecoverable returns whether the run can continue past this error
func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		Context:     make(map[string]interface{}),
		Recoverable: false,
	}
}

// NewRecoverableError creates a new recoverable error
func NewRecoverableError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		Context:     make(map[string]interface{}),
		Recoverable: true,
	}
}

// ErrorClassifier provides methods to classify and handle different types of errors
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an AppError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	// Check if it's already an AppError
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	// Classify MySQL errors
	if mysqlErr := ec.classifyMySQLError(err); mysqlErr != nil {
		return mysqlErr
	}

	// Classify network errors
	if netErr := ec.classifyNetworkError(err); netErr != nil {
		return netErr
	}

	// Classify context errors
	if ctxErr := ec.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	// Classify file system errors
	if fsErr := ec.classifyFileSystemError(err); fsErr != nil {
		return fsErr
	}

	// Default to unknown error
	return NewRecoverableError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

// classifyMySQLError classifies MySQL-specific errors
func (ec *ErrorClassifier) classifyMySQLError(err error) *AppError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1044: // Access denied to database
			return NewRecoverableError(ErrorTypePermission,
				"Access to database denied - check grants for the backup user", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1045: // Access denied
			return NewAppError(ErrorTypePermission,
				"Database access denied - check username and password", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1049: // Unknown database
			return NewRecoverableError(ErrorTypeValidation,
				"Database does not exist", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2003: // Can't connect to MySQL server
			return NewRecoverableError(ErrorTypeConnection,
				"Cannot connect to MySQL server - server may be down or unreachable", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2006: // MySQL server has gone away
			return NewRecoverableError(ErrorTypeConnection,
				"MySQL server connection lost", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2013: // Lost connection during query
			return NewRecoverableError(ErrorTypeConnection,
				"Connection lost while querying - server may be overloaded", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		default:
			return NewRecoverableError(ErrorTypeSQL,
				fmt.Sprintf("MySQL error: %s", mysqlErr.Message), err).
				WithContext("mysql_error_code", mysqlErr.Number)
		}
	}

	// Check for SQL driver errors
	if errors.Is(err, sql.ErrNoRows) {
		return NewAppError(ErrorTypeValidation, "No rows found", err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return NewRecoverableError(ErrorTypeConnection, "Database connection is closed", err)
	}

	return nil
}

// classifyNetworkError classifies network-related errors
func (ec *ErrorClassifier) classifyNetworkError(err error) *AppError {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewRecoverableError(ErrorTypeTimeout,
				"Network operation timed out", err)
		}
	}

	// Check for specific network error types
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return NewRecoverableError(ErrorTypeConnection,
				"Failed to establish network connection", err)
		case "read", "write":
			return NewRecoverableError(ErrorTypeConnection,
				"Network I/O error", err)
		}
	}

	return nil
}

// classifyContextError classifies context-related errors
func (ec *ErrorClassifier) classifyContextError(err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRecoverableError(ErrorTypeTimeout,
			"Operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeInterruption,
			"Operation was canceled", err)
	}

	return nil
}

// classifyFileSystemError classifies file system errors
func (ec *ErrorClassifier) classifyFileSystemError(err error) *AppError {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		switch pathErr.Err {
		case syscall.ENOENT:
			return NewAppError(ErrorTypeValidation,
				fmt.Sprintf("File or directory not found: %s", pathErr.Path), err)
		case syscall.EACCES:
			return NewAppError(ErrorTypePermission,
				fmt.Sprintf("Permission denied: %s", pathErr.Path), err)
		case syscall.ENOSPC:
			return NewAppError(ErrorTypeValidation,
				"No space left on device", err)
		}
	}

	return nil
}

// SignalContext returns a context canceled on SIGINT or SIGTERM so a run
// can stop between steps and clean up partial files
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// CreateContextWithTimeout creates a context with timeout and cancellation support
func CreateContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// IsRecoverableError checks if an error lets the run continue
func IsRecoverableError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsRecoverable()
	}
	return false
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// ExitCodeForError maps an error to the process exit code. Validation
// and configuration problems abort with ExitConfig, anything else
// counts as a partial run failure.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch GetErrorType(err) {
	case ErrorTypeValidation:
		return ExitConfig
	default:
		return ExitPartial
	}
}

// FormatUserError formats an error for display to users
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.GetUserMessage()
	}

	return err.Error()
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		wrapped := NewAppError(appErr.Type, message, err)
		wrapped.Recoverable = appErr.Recoverable
		return wrapped
	}

	classifier := NewErrorClassifier()
	classifiedErr := classifier.ClassifyError(err)
	classifiedErr.Message = message
	return classifiedErr
}
