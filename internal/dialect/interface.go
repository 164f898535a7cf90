package dialect

import (
	"context"
	"database/sql"
)

// ColumnDef is the engine-neutral column description used for DDL.
// Type is one of the XMLDB field types (int, number, float, char, text,
// binary, datetime).
type ColumnDef struct {
	Name     string
	Type     string
	Length   int
	Decimals int
	NotNull  bool
	Sequence bool
	Default  *string
}

// Dialect abstracts database-specific operations.
type Dialect interface {
	// Metadata Queries (Schema Introspection)
	GetTablesQuery(schema string) string
	GetColumnsQuery(schema string) string
	GetIndexesQuery(schema string) string
	GetForeignKeysQuery(schema string) string

	// Execution Hooks (Import Level). schema is the resolved schema the
	// tables live in.
	BeforeImport(ctx context.Context, tx *sql.Tx, schema string) error
	AfterImport(ctx context.Context, tx *sql.Tx, schema string) error

	// Execution Hooks (Table Level) - For IDENTITY_INSERT etc.
	BeforeTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error
	AfterTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error

	// Query Generation. Table names passed to the builders below are
	// already qualified with QualifyTable.
	QualifyTable(schema, table string) string
	InsertQuery(table string, cols []string) string
	DeleteQuery(table string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.

	// Sequences. DeferSequenceReset reports whether the reset statement is
	// DDL that commits implicitly and therefore has to run after the
	// import transaction has committed.
	ResetSequenceQuery(table, column string, next int64) string
	DeferSequenceReset() bool

	// DDL (bootstrap of an empty target). TransactionalDDL reports whether
	// CREATE TABLE can be rolled back.
	TransactionalDDL() bool
	CreateTableQuery(table string, cols []ColumnDef, primaryKey []string) string
	CreateIndexQuery(table, name string, unique bool, cols []string) string

	// Helpers
	TypeFamily(sqlType string) string
	GetSchemaName(input string) string
}
