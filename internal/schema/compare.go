package schema

import (
	"fmt"
	"strings"
)

type DifferenceKind string

const (
	MissingTable        DifferenceKind = "missing table"
	MissingColumn       DifferenceKind = "missing column"
	ExtraColumn         DifferenceKind = "extra column"
	TypeMismatch        DifferenceKind = "type mismatch"
	NullabilityMismatch DifferenceKind = "nullability mismatch"
	SequenceMismatch    DifferenceKind = "sequence mismatch"
	MissingIndex        DifferenceKind = "missing index"
)

// Difference is one structural disagreement between a declared table and
// the live database.
type Difference struct {
	Table    string
	Object   string
	Kind     DifferenceKind
	Expected string
	Actual   string
}

func (d Difference) String() string {
	s := fmt.Sprintf("%s: %s", d.Table, d.Kind)
	if d.Object != "" {
		s += " " + d.Object
	}
	if d.Expected != "" || d.Actual != "" {
		s += fmt.Sprintf(" (expected %s, found %s)", d.Expected, d.Actual)
	}
	return s
}

// CompareDocument compares every declared table with its live counterpart.
// Live tables that the document does not declare are ignored.
func CompareDocument(doc *Document, live []*Table) []Difference {
	byName := make(map[string]*Table, len(live))
	for _, t := range live {
		byName[strings.ToLower(t.Name)] = t
	}

	var diffs []Difference
	for _, declared := range doc.Tables {
		lt, ok := byName[strings.ToLower(declared.Name)]
		if !ok {
			diffs = append(diffs, Difference{Table: declared.Name, Kind: MissingTable})
			continue
		}
		diffs = append(diffs, CompareTable(declared, lt)...)
	}
	return diffs
}

// CompareTable reports how live differs from declared. Types are compared
// by family because engines do not round-trip XMLDB types exactly. Column
// defaults are not compared; every engine renders them differently.
func CompareTable(declared, live *Table) []Difference {
	var diffs []Difference
	add := func(obj string, kind DifferenceKind, expected, actual string) {
		diffs = append(diffs, Difference{Table: declared.Name, Object: obj, Kind: kind, Expected: expected, Actual: actual})
	}

	for _, f := range declared.Fields {
		lf := live.Field(f.Name)
		if lf == nil {
			add(f.Name, MissingColumn, "", "")
			continue
		}
		if f.Type.Family() != lf.Type.Family() {
			add(f.Name, TypeMismatch, string(f.Type.Family()), string(lf.Type.Family()))
		}
		if f.NotNull != lf.NotNull {
			add(f.Name, NullabilityMismatch, nullability(f.NotNull), nullability(lf.NotNull))
		}
		if f.Sequence != lf.Sequence {
			add(f.Name, SequenceMismatch, fmt.Sprint(f.Sequence), fmt.Sprint(lf.Sequence))
		}
	}
	for _, lf := range live.Fields {
		if declared.Field(lf.Name) == nil {
			add(lf.Name, ExtraColumn, "", "")
		}
	}

	for _, idx := range declared.Indexes {
		if !hasIndex(live, idx) {
			add(idx.Name, MissingIndex, indexSignature(idx), "")
		}
	}
	return diffs
}

func nullability(notNull bool) string {
	if notNull {
		return "NOT NULL"
	}
	return "NULL"
}

// indexSignature identifies an index by shape, since live index names are
// generated by the engine.
func indexSignature(idx *Index) string {
	cols := make([]string, len(idx.Fields))
	for i, c := range idx.Fields {
		cols[i] = strings.ToLower(c)
	}
	kind := "index"
	switch {
	case idx.Primary:
		kind = "primary"
	case idx.Unique:
		kind = "unique"
	}
	return kind + "(" + strings.Join(cols, ",") + ")"
}

func hasIndex(t *Table, want *Index) bool {
	sig := indexSignature(want)
	for _, idx := range t.Indexes {
		if indexSignature(idx) == sig {
			return true
		}
	}
	return false
}
