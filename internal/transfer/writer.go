package transfer

import (
	"context"

	"github.com/pkg/errors"

	"db-transfer/internal/schema"
)

// Writer performs the row-level mutations of an import session. It never
// commits: every call runs inside the session transaction.
type Writer struct {
	tx   TargetTx
	rows map[string]int
}

func NewWriter(tx TargetTx) *Writer {
	return &Writer{tx: tx, rows: make(map[string]int)}
}

// ClearTable deletes every row of t.
func (w *Writer) ClearTable(ctx context.Context, t *schema.Table) error {
	if err := w.tx.DeleteAll(ctx, t); err != nil {
		return errors.Wrapf(err, "clear table %s", t.Name)
	}
	w.rows[t.Name] = 0
	return nil
}

// InsertRecord inserts rec into t, keeping explicit sequence values.
func (w *Writer) InsertRecord(ctx context.Context, t *schema.Table, rec Record) error {
	n := w.rows[t.Name] + 1
	if err := w.tx.Insert(ctx, t, rec); err != nil {
		return &InsertError{Table: t.Name, Row: n, Err: err}
	}
	w.rows[t.Name] = n
	return nil
}

// ResetSequence moves the sequence of t past the largest imported value.
// Tables without a sequence field are left alone.
func (w *Writer) ResetSequence(ctx context.Context, t *schema.Table) error {
	f := t.SequenceField()
	if f == nil {
		return nil
	}
	if err := w.tx.ResetSequence(ctx, t, f); err != nil {
		return errors.Wrapf(err, "reset sequence %s.%s", t.Name, f.Name)
	}
	return nil
}

// Rows returns the number of rows inserted into table since it was cleared.
func (w *Writer) Rows(table string) int {
	return w.rows[table]
}
