package transfer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"db-transfer/internal/schema"
)

// Protocol misuse. Each of these also rolls back an open session.
var (
	ErrSessionOpen    = errors.New("transfer: an import session is already open")
	ErrSessionNotOpen = errors.New("transfer: no import session is open")
	ErrTableOpen      = errors.New("transfer: a table import is still open")
	ErrTableNotOpen   = errors.New("transfer: table import is not open")
	ErrTableImported  = errors.New("transfer: table was already imported in this session")
	ErrIncomplete     = errors.New("transfer: source ended before the import was finished")
)

// VersionMismatchError reports a dataset produced by an incompatible
// release.
type VersionMismatchError struct {
	Source string
	Target string
	Err    error
}

func (e *VersionMismatchError) Error() string {
	msg := fmt.Sprintf("version mismatch: data version %q is not compatible with system version %q", e.Source, e.Target)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VersionMismatchError) Unwrap() error { return e.Err }

// SchemaMismatchError reports structural drift, either between the
// declared schema and the live database (Differences) or between the
// declared table and the schema a dataset was exported from (hashes).
type SchemaMismatchError struct {
	Table        string
	ExpectedHash string
	ActualHash   string
	Differences  []schema.Difference
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Differences) > 0 {
		parts := make([]string, len(e.Differences))
		for i, d := range e.Differences {
			parts[i] = d.String()
		}
		return "schema mismatch: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("schema mismatch: table %s has hash %s, data was exported with %s", e.Table, e.ExpectedHash, e.ActualHash)
}

// UnknownTableError reports a table that the schema document does not declare.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %s: not declared in the schema", e.Table)
}

// TableMissingError reports a declared table that does not exist in the
// target database.
type TableMissingError struct {
	Table string
}

func (e *TableMissingError) Error() string {
	return fmt.Sprintf("table %s is declared but does not exist in the target database", e.Table)
}

// InsertError reports a row the store rejected.
type InsertError struct {
	Table string
	Row   int
	Err   error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert into %s failed at row %d: %v", e.Table, e.Row, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }
