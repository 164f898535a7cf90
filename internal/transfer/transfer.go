// Package transfer moves whole databases between stores that share a
// declared schema. Data arrives through a streaming protocol (Sink) and is
// written inside a single transaction, so an import either replaces the
// content of every imported table or changes nothing.
package transfer

import (
	"context"
	"time"

	"db-transfer/internal/schema"
)

// Record is one row keyed by column name. A nil value is SQL NULL.
type Record map[string]any

// Header describes a dataset.
type Header struct {
	Version     string
	Timestamp   time.Time
	Description string
}

// Sink receives a dataset. Calls arrive in protocol order:
// Begin, then per table BeginTable, Record..., EndTable, then End.
type Sink interface {
	Begin(ctx context.Context, h Header) error
	BeginTable(ctx context.Context, table, hash string) error
	Record(ctx context.Context, table string, rec Record) error
	EndTable(ctx context.Context, table string) error
	End(ctx context.Context) error
}

// Source produces a complete dataset into a Sink.
type Source interface {
	Stream(ctx context.Context, sink Sink) error
}

// Introspector reports the live structure of a database.
type Introspector interface {
	Introspect(ctx context.Context) ([]*schema.Table, error)
}

// Target is the database an import writes to.
type Target interface {
	Introspector
	// TableNames lists the tables present in the database.
	TableNames(ctx context.Context) ([]string, error)
	// Install creates every table of doc. Only used on an empty database.
	Install(ctx context.Context, doc *schema.Document) error
	Begin(ctx context.Context) (TargetTx, error)
}

// TargetTx is the transaction an import session runs in.
type TargetTx interface {
	TableExists(ctx context.Context, table string) (bool, error)
	DeleteAll(ctx context.Context, t *schema.Table) error
	Insert(ctx context.Context, t *schema.Table, rec Record) error
	ResetSequence(ctx context.Context, t *schema.Table, f *schema.Field) error
	Commit(ctx context.Context) error
	Rollback() error
}

// RowReader is the database an export reads from.
type RowReader interface {
	Introspector
	// ReadTable calls fn for every row of t.
	ReadTable(ctx context.Context, t *schema.Table, fn func(Record) error) error
}

// TableResult summarizes one imported table.
type TableResult struct {
	Name string
	Rows int
}
