package ndxstore

import "fmt"

// ErrorCode is the closed set of failure reasons a store operation can
// report (spec.md §7). It is never extended silently; adding a value is a
// compatibility-relevant change to callers that switch on it.
type ErrorCode uint8

const (
	CodeDatabaseAlreadyExists ErrorCode = iota + 1
	CodeDatabaseAlreadyOpened
	CodeDatabaseIOError
	CodeEmptyDatabase
	CodeEntryNotFound
	CodeIndexCorrupt
	CodeInvalidDatabase
	CodeInvalidIndex
	CodeInvalidKey
	CodeInvalidKeyDescriptor
	CodeInvalidParameters
	CodeInvalidKeyIndex
	CodeNoDatabase
	CodeNoRecord
	CodeRecordTooLarge
	CodeRecordTooSmall
	CodeSizeMismatch
	CodeTooManyRecords
)

var codeDefaultMessage = map[ErrorCode]string{
	CodeDatabaseAlreadyExists: "database already exists",
	CodeDatabaseAlreadyOpened: "database already opened",
	CodeDatabaseIOError:       "database I/O error",
	CodeEmptyDatabase:         "database is empty",
	CodeEntryNotFound:         "entry not found",
	CodeIndexCorrupt:          "index is corrupt",
	CodeInvalidDatabase:       "invalid database",
	CodeInvalidIndex:          "invalid index",
	CodeInvalidKey:            "invalid key",
	CodeInvalidKeyDescriptor:  "invalid key descriptor",
	CodeInvalidParameters:     "invalid parameters",
	CodeInvalidKeyIndex:       "invalid key index",
	CodeNoDatabase:            "no database",
	CodeNoRecord:              "no record",
	CodeRecordTooLarge:        "record too large",
	CodeRecordTooSmall:        "record too small",
	CodeSizeMismatch:          "size mismatch",
	CodeTooManyRecords:        "too many records",
}

// StoreError is the custom error type every exported operation in this
// package returns. Code carries the closed failure reason; msg, when set,
// supplies operation-specific detail beyond the default message for Code.
type StoreError struct {
	Code ErrorCode
	msg  string
}

// Error returns msg if set, otherwise the default message for Code.
func (e StoreError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if m, ok := codeDefaultMessage[e.Code]; ok {
		return m
	}
	return "ndxstore error"
}

// Is reports whether target is a StoreError with the same Code, so callers
// can write errors.Is(err, ndxstore.ErrEntryNotFound) regardless of
// operation-specific detail in msg.
func (e StoreError) Is(target error) bool {
	t, ok := target.(StoreError)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, format string, args ...any) StoreError {
	if format == "" {
		return StoreError{Code: code}
	}
	return StoreError{Code: code, msg: fmt.Sprintf(format, args...)}
}

// Sentinel errors, one per ErrorCode, for use with errors.Is. Operation
// functions return a StoreError carrying additional detail, never these
// values directly, but errors.Is(err, ErrEntryNotFound) still matches.
var (
	ErrDatabaseAlreadyExists = StoreError{Code: CodeDatabaseAlreadyExists}
	ErrDatabaseAlreadyOpened = StoreError{Code: CodeDatabaseAlreadyOpened}
	ErrDatabaseIOError       = StoreError{Code: CodeDatabaseIOError}
	ErrEmptyDatabase         = StoreError{Code: CodeEmptyDatabase}
	ErrEntryNotFound         = StoreError{Code: CodeEntryNotFound}
	ErrIndexCorrupt          = StoreError{Code: CodeIndexCorrupt}
	ErrInvalidDatabase       = StoreError{Code: CodeInvalidDatabase}
	ErrInvalidIndex          = StoreError{Code: CodeInvalidIndex}
	ErrInvalidKey            = StoreError{Code: CodeInvalidKey}
	ErrInvalidKeyDescriptor  = StoreError{Code: CodeInvalidKeyDescriptor}
	ErrInvalidParameters     = StoreError{Code: CodeInvalidParameters}
	ErrInvalidKeyIndex       = StoreError{Code: CodeInvalidKeyIndex}
	ErrNoDatabase            = StoreError{Code: CodeNoDatabase}
	ErrNoRecord              = StoreError{Code: CodeNoRecord}
	ErrRecordTooLarge        = StoreError{Code: CodeRecordTooLarge}
	ErrRecordTooSmall        = StoreError{Code: CodeRecordTooSmall}
	ErrSizeMismatch          = StoreError{Code: CodeSizeMismatch}
	ErrTooManyRecords        = StoreError{Code: CodeTooManyRecords}
)
