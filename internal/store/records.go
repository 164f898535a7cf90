package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"db-transfer/internal/dialect"
	"db-transfer/internal/schema"
	"db-transfer/internal/transfer"
)

func columnDefs(t *schema.Table) []dialect.ColumnDef {
	defs := make([]dialect.ColumnDef, len(t.Fields))
	for i, f := range t.Fields {
		defs[i] = dialect.ColumnDef{
			Name:     f.Name,
			Type:     string(f.Type),
			Length:   f.Length,
			Decimals: f.Decimals,
			NotNull:  f.NotNull,
			Sequence: f.Sequence,
			Default:  f.Default,
		}
	}
	return defs
}

// indexName prefixes the declared name with the table so that names stay
// unique across the schema, as most engines require.
func indexName(t *schema.Table, idx *schema.Index) string {
	suffix := "ix"
	if idx.Unique {
		suffix = "uix"
	}
	return fmt.Sprintf("%s_%s_%s", t.Name, idx.Name, suffix)
}

func selectQuery(t *schema.Table, from string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.FieldNames(), ", "), from)
	if pk := t.PrimaryKey(); len(pk) > 0 {
		q += " ORDER BY " + strings.Join(pk, ", ")
	}
	return q
}

// insertArgs orders the record's columns as declared. Columns the table
// does not declare are an error.
func insertArgs(t *schema.Table, rec transfer.Record) ([]string, []any, error) {
	var unknown []string
	for col := range rec {
		if t.Field(col) == nil {
			unknown = append(unknown, col)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, nil, errors.Errorf("table %s has no column %s", t.Name, strings.Join(unknown, ", "))
	}

	cols := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec))
	for _, f := range t.Fields {
		v, ok := lookup(rec, f.Name)
		if !ok {
			continue
		}
		cols = append(cols, f.Name)
		args = append(args, v)
	}
	return cols, args, nil
}

// normalizeRecord maps scanned columns back to declared field names.
// Drivers return text as []byte; only binary fields keep it.
func normalizeRecord(t *schema.Table, raw map[string]any) transfer.Record {
	rec := make(transfer.Record, len(raw))
	for col, v := range raw {
		name := col
		f := t.Field(col)
		if f != nil {
			name = f.Name
		}
		if b, ok := v.([]byte); ok && (f == nil || f.Type != schema.TypeBinary) {
			v = string(b)
		}
		rec[name] = v
	}
	return rec
}

func lookup(rec transfer.Record, name string) (any, bool) {
	if v, ok := rec[name]; ok {
		return v, true
	}
	for k, v := range rec {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}
