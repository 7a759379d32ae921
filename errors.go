package datawrapper

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrorCode represents a database error classification
type ErrorCode string

const (
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeDuplicate          ErrorCode = "DUPLICATE"
	CodeForeignKey         ErrorCode = "FOREIGN_KEY"
	CodeCheckViolation     ErrorCode = "CHECK_VIOLATION"
	CodeNotNullViolation   ErrorCode = "NOT_NULL"
	CodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	CodeConnectionNotFound ErrorCode = "CONNECTION_NOT_FOUND"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeSerialization      ErrorCode = "SERIALIZATION"
	CodeDeadlock           ErrorCode = "DEADLOCK"
	CodeUnknown            ErrorCode = "UNKNOWN"
)

// Sentinel errors for quick checks
var (
	ErrNotFound            = errors.New("datawrapper: record not found")
	ErrDuplicate           = errors.New("datawrapper: duplicate key violation")
	ErrForeignKey          = errors.New("datawrapper: foreign key violation")
	ErrCheckViolation      = errors.New("datawrapper: check constraint violation")
	ErrNotNullViolation    = errors.New("datawrapper: not null violation")
	ErrConnection          = errors.New("datawrapper: connection failed")
	ErrTimeout             = errors.New("datawrapper: operation timeout")
	ErrSerialization       = errors.New("datawrapper: serialization failure")
	ErrDeadlock            = errors.New("datawrapper: deadlock detected")
	ErrConnectionNotFound  = errors.New("datawrapper: connection not found")
	ErrConnectionExists    = errors.New("datawrapper: connection already registered")
	ErrConnectionName      = errors.New("datawrapper: connection name mismatch")
	ErrTransactionStarted  = errors.New("datawrapper: transaction already started")
	ErrTransactionInactive = errors.New("datawrapper: transaction is not active")
	ErrValidation          = errors.New("datawrapper: validation error")
)

// Error is a rich database error with context
type Error struct {
	Code       ErrorCode // Error classification
	Message    string    // Human-readable message
	Op         string    // Operation that failed (e.g., "FindByID", "Save")
	Table      string    // Table name if known
	Column     string    // Column name if known
	Constraint string    // Constraint name if applicable
	Detail     string    // Additional detail from PostgreSQL
	Hint       string    // Hint from PostgreSQL
	Cause      error     // Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("datawrapper: %s", e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("datawrapper.%s: %s", e.Op, e.Message)
	}
	if e.Table != "" {
		msg += fmt.Sprintf(" (table: %s)", e.Table)
	}
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint: %s)", e.Constraint)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for sentinel error matching
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeNotFound:
		return target == ErrNotFound
	case CodeDuplicate:
		return target == ErrDuplicate
	case CodeForeignKey:
		return target == ErrForeignKey
	case CodeCheckViolation:
		return target == ErrCheckViolation
	case CodeNotNullViolation:
		return target == ErrNotNullViolation
	case CodeConnectionFailed:
		return target == ErrConnection
	case CodeConnectionNotFound:
		return target == ErrConnectionNotFound
	case CodeTimeout:
		return target == ErrTimeout
	case CodeSerialization:
		return target == ErrSerialization
	case CodeDeadlock:
		return target == ErrDeadlock
	}
	return false
}

// wrapError converts a raw error to a rich Error
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}

	// Already wrapped
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}

	if err.Error() == "sql: no rows in result set" {
		return &Error{
			Code:    CodeNotFound,
			Message: "record not found",
			Op:      op,
			Cause:   err,
		}
	}

	// bun's native driver
	var drvErr pgdriver.Error
	if errors.As(err, &drvErr) {
		return fromSQLState(op, pgFields{
			code:       drvErr.Field('C'),
			message:    drvErr.Field('M'),
			detail:     drvErr.Field('D'),
			hint:       drvErr.Field('H'),
			table:      drvErr.Field('t'),
			column:     drvErr.Field('c'),
			constraint: drvErr.Field('n'),
		}, err)
	}

	// pgx stdlib connections opened through NewConn
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromSQLState(op, pgFields{
			code:       pgErr.Code,
			message:    pgErr.Message,
			detail:     pgErr.Detail,
			hint:       pgErr.Hint,
			table:      pgErr.TableName,
			column:     pgErr.ColumnName,
			constraint: pgErr.ConstraintName,
		}, err)
	}

	return &Error{
		Code:    CodeUnknown,
		Message: err.Error(),
		Op:      op,
		Cause:   err,
	}
}

type pgFields struct {
	code, message, detail, hint, table, column, constraint string
}

// fromSQLState maps a PostgreSQL SQLSTATE to a rich error.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func fromSQLState(op string, f pgFields, cause error) *Error {
	e := &Error{
		Op:         op,
		Table:      f.table,
		Column:     f.column,
		Constraint: f.constraint,
		Detail:     f.detail,
		Hint:       f.hint,
		Cause:      cause,
	}

	switch f.code {
	case "23505": // unique_violation
		e.Code = CodeDuplicate
		e.Message = "duplicate key value violates unique constraint"
	case "23503": // foreign_key_violation
		e.Code = CodeForeignKey
		e.Message = "foreign key constraint violation"
	case "23502": // not_null_violation
		e.Code = CodeNotNullViolation
		e.Message = "null value in column violates not-null constraint"
	case "23514": // check_violation
		e.Code = CodeCheckViolation
		e.Message = "check constraint violation"
	case "40001":
		e.Code = CodeSerialization
		e.Message = "serialization failure, retry transaction"
	case "40P01":
		e.Code = CodeDeadlock
		e.Message = "deadlock detected"
	case "57014":
		e.Code = CodeTimeout
		e.Message = "query was cancelled due to timeout"
	case "08000", "08003", "08006":
		e.Code = CodeConnectionFailed
		e.Message = "database connection failed"
	default:
		e.Code = CodeUnknown
		e.Message = f.message
	}

	return e
}

// constraintMessages are the per-field messages reported when the database
// rejects a write.
var constraintMessages = map[ErrorCode]string{
	CodeDuplicate:        "value already exists",
	CodeForeignKey:       "referenced record does not exist",
	CodeNotNullViolation: "value is required",
	CodeCheckViolation:   "value is not allowed",
}

// ValidationError aggregates per-field constraint violations. It is produced
// both by pre-persist validation and by database constraint rejections.
type ValidationError struct {
	Entity string              `json:"entity"`
	Fields map[string][]string `json:"fields"`
	Cause  error               `json:"-"`
}

// NewValidationError returns an empty ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity, Fields: make(map[string][]string)}
}

// Add records a violation for field.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

// Field returns the violations recorded for field.
func (e *ValidationError) Field(name string) []string {
	return e.Fields[name]
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], ", ")))
	}

	msg := "datawrapper: validation error"
	if e.Entity != "" {
		msg += " on " + e.Entity
	}
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var detailKeyPattern = regexp.MustCompile(`Key \(([^)]+)\)=`)

// NewConstraintValidationError translates a failed write into a
// ValidationError keyed by the offending column. Errors that are not
// constraint violations are returned unchanged.
func NewConstraintValidationError(entity string, err error) error {
	var dbErr *Error
	if !errors.As(err, &dbErr) {
		return err
	}
	msg, ok := constraintMessages[dbErr.Code]
	if !ok {
		return err
	}

	field := dbErr.Column
	if field == "" {
		if m := detailKeyPattern.FindStringSubmatch(dbErr.Detail); m != nil {
			field = strings.TrimSpace(strings.Split(m[1], ",")[0])
		}
	}
	if field == "" {
		field = dbErr.Constraint
	}
	if field == "" {
		field = "_"
	}

	vErr := NewValidationError(entity).Add(field, msg)
	vErr.Cause = dbErr
	return vErr
}

// ConnectionNotFoundError is returned when an operation names a connection
// that was never registered, or a model no connection serves. Model is set
// in the latter case.
type ConnectionNotFoundError struct {
	Name  string
	Model string
}

func (e *ConnectionNotFoundError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("datawrapper: no connection serves %s", e.Model)
	}
	return fmt.Sprintf("datawrapper: connection %s not found", e.Name)
}

func (e *ConnectionNotFoundError) Is(target error) bool {
	return target == ErrConnectionNotFound
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if error is a duplicate key error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key error
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// IsConnection checks if error is a connection error
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsConnectionNotFound checks if error references an unknown connection
func IsConnectionNotFound(err error) bool {
	return errors.Is(err, ErrConnectionNotFound)
}

// IsTimeout checks if error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsValidation checks if error is a ValidationError
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRetryable checks if the error is retryable (serialization, deadlock)
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerialization) || errors.Is(err, ErrDeadlock)
}

// AsValidationError extracts the ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code if it's a datawrapper error
func GetErrorCode(err error) (ErrorCode, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code, true
	}
	return "", false
}

// GetConstraint extracts the constraint name if available
func GetConstraint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Constraint != "" {
		return dbErr.Constraint, true
	}
	return "", false
}

// GetColumn extracts the column name if available
func GetColumn(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Column != "" {
		return dbErr.Column, true
	}
	return "", false
}
