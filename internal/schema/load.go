package schema

import (
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/jacoelho/xsd"
	xsderrors "github.com/jacoelho/xsd/errors"
	"github.com/pkg/errors"
)

//go:embed xmldb.xsd
var xsdFS embed.FS

var (
	xmldbOnce   sync.Once
	xmldbSchema *xsd.Schema
	xmldbErr    error
)

// MalformedSchemaError reports a schema source that is not a well-formed
// XMLDB document.
type MalformedSchemaError struct {
	Source string
	Reason string
	Err    error
}

func (e *MalformedSchemaError) Error() string {
	msg := "malformed schema"
	if e.Source != "" {
		msg += " " + e.Source
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedSchemaError) Unwrap() error { return e.Err }

// Violations returns the XSD violations behind the error, if any.
func (e *MalformedSchemaError) Violations() []xsderrors.Validation {
	v, _ := xsderrors.AsValidations(e.Err)
	return v
}

func malformed(reason string, args ...any) *MalformedSchemaError {
	return &MalformedSchemaError{Reason: fmt.Sprintf(reason, args...)}
}

func compiledXSD() (*xsd.Schema, error) {
	xmldbOnce.Do(func() {
		xmldbSchema, xmldbErr = xsd.Load(xsdFS, "xmldb.xsd")
	})
	return xmldbSchema, xmldbErr
}

type xmlDocument struct {
	XMLName xml.Name   `xml:"XMLDB"`
	Path    string     `xml:"PATH,attr"`
	Version string     `xml:"VERSION,attr"`
	Comment string     `xml:"COMMENT,attr"`
	Tables  []xmlTable `xml:"TABLES>TABLE"`
}

type xmlTable struct {
	Name    string     `xml:"NAME,attr"`
	Comment string     `xml:"COMMENT,attr"`
	Fields  []xmlField `xml:"FIELDS>FIELD"`
	Keys    []xmlKey   `xml:"KEYS>KEY"`
	Indexes []xmlIndex `xml:"INDEXES>INDEX"`
}

type xmlField struct {
	Name     string  `xml:"NAME,attr"`
	Type     string  `xml:"TYPE,attr"`
	Length   string  `xml:"LENGTH,attr"`
	Decimals string  `xml:"DECIMALS,attr"`
	NotNull  string  `xml:"NOTNULL,attr"`
	Sequence string  `xml:"SEQUENCE,attr"`
	Default  *string `xml:"DEFAULT,attr"`
	Comment  string  `xml:"COMMENT,attr"`
}

type xmlKey struct {
	Name      string `xml:"NAME,attr"`
	Type      string `xml:"TYPE,attr"`
	Fields    string `xml:"FIELDS,attr"`
	RefTable  string `xml:"REFTABLE,attr"`
	RefFields string `xml:"REFFIELDS,attr"`
}

type xmlIndex struct {
	Name   string `xml:"NAME,attr"`
	Unique string `xml:"UNIQUE,attr"`
	Fields string `xml:"FIELDS,attr"`
}

// LoadFile reads an XMLDB document from disk.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open schema %s", path)
	}
	defer f.Close()

	doc, err := Load(f)
	var me *MalformedSchemaError
	if errors.As(err, &me) {
		me.Source = path
	}
	return doc, err
}

// Load parses an XMLDB document. The document is validated against the
// embedded XMLDB XSD first, then checked for the invariants the XSD cannot
// express (unique names, key fields that exist, a single int sequence).
func Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read schema")
	}

	xs, err := compiledXSD()
	if err != nil {
		return nil, errors.Wrap(err, "compile xmldb.xsd")
	}
	if err := xs.Validate(bytes.NewReader(data)); err != nil {
		return nil, &MalformedSchemaError{Reason: "document does not match xmldb.xsd", Err: err}
	}

	var raw xmlDocument
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedSchemaError{Reason: "cannot decode document", Err: err}
	}
	return build(&raw)
}

func build(raw *xmlDocument) (*Document, error) {
	doc := &Document{Path: raw.Path, Version: raw.Version, Comment: raw.Comment}
	seen := make(map[string]bool, len(raw.Tables))

	for _, rt := range raw.Tables {
		key := strings.ToLower(rt.Name)
		if seen[key] {
			return nil, malformed("duplicate table %q", rt.Name)
		}
		seen[key] = true

		t, err := buildTable(rt)
		if err != nil {
			return nil, err
		}
		doc.Tables = append(doc.Tables, t)
	}
	doc.reindex()

	for _, t := range doc.Tables {
		for _, fk := range t.ForeignKeys {
			ref := doc.Table(fk.RefTable)
			if ref == nil {
				// XMLDB allows references to tables declared by other
				// components; they simply do not order this document.
				continue
			}
			fk.RefTable = ref.Name
			if !strings.EqualFold(ref.Name, t.Name) && !contains(t.Dependencies, ref.Name) {
				t.Dependencies = append(t.Dependencies, ref.Name)
			}
		}
	}
	return doc, nil
}

func buildTable(rt xmlTable) (*Table, error) {
	t := &Table{Name: rt.Name, Comment: rt.Comment, Dependencies: []string{}}

	for _, rf := range rt.Fields {
		if t.Field(rf.Name) != nil {
			return nil, malformed("table %s: duplicate field %q", rt.Name, rf.Name)
		}
		f, err := buildField(rt.Name, rf)
		if err != nil {
			return nil, err
		}
		if f.Sequence && t.SequenceField() != nil {
			return nil, malformed("table %s: more than one sequence field", rt.Name)
		}
		t.Fields = append(t.Fields, f)
	}

	names := make(map[string]bool)
	addIndex := func(idx *Index) error {
		k := strings.ToLower(idx.Name)
		if names[k] {
			return malformed("table %s: duplicate key or index %q", rt.Name, idx.Name)
		}
		names[k] = true
		for _, fn := range idx.Fields {
			if t.Field(fn) == nil {
				return malformed("table %s: %s refers to unknown field %q", rt.Name, idx.Name, fn)
			}
		}
		t.Indexes = append(t.Indexes, idx)
		return nil
	}

	for _, rk := range rt.Keys {
		fields := splitFields(rk.Fields)
		switch rk.Type {
		case "primary":
			if t.PrimaryKey() != nil {
				return nil, malformed("table %s: more than one primary key", rt.Name)
			}
			if err := addIndex(&Index{Name: rk.Name, Unique: true, Primary: true, Fields: fields}); err != nil {
				return nil, err
			}
		case "unique":
			if err := addIndex(&Index{Name: rk.Name, Unique: true, Fields: fields}); err != nil {
				return nil, err
			}
		case "foreign", "foreign-unique":
			refs := splitFields(rk.RefFields)
			if rk.RefTable == "" || len(refs) != len(fields) {
				return nil, malformed("table %s: foreign key %s needs REFTABLE and matching REFFIELDS", rt.Name, rk.Name)
			}
			for i, fn := range fields {
				if t.Field(fn) == nil {
					return nil, malformed("table %s: %s refers to unknown field %q", rt.Name, rk.Name, fn)
				}
				t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{Name: rk.Name, Column: fn, RefTable: rk.RefTable, RefColumn: refs[i]})
			}
			if rk.Type == "foreign-unique" {
				if err := addIndex(&Index{Name: rk.Name, Unique: true, Fields: fields}); err != nil {
					return nil, err
				}
			}
		default:
			return nil, malformed("table %s: unknown key type %q", rt.Name, rk.Type)
		}
	}

	for _, ri := range rt.Indexes {
		if err := addIndex(&Index{Name: ri.Name, Unique: ri.Unique == "true", Fields: splitFields(ri.Fields)}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func buildField(table string, rf xmlField) (*Field, error) {
	f := &Field{
		Name:     rf.Name,
		Type:     FieldType(rf.Type),
		NotNull:  rf.NotNull == "true",
		Sequence: rf.Sequence == "true",
		Default:  rf.Default,
		Comment:  rf.Comment,
	}
	if !f.Type.Valid() {
		return nil, malformed("table %s: field %s has unknown type %q", table, rf.Name, rf.Type)
	}

	var err error
	if f.Length, err = parseSize(rf.Length); err != nil {
		return nil, malformed("table %s: field %s: bad LENGTH %q", table, rf.Name, rf.Length)
	}
	if f.Decimals, err = parseSize(rf.Decimals); err != nil {
		return nil, malformed("table %s: field %s: bad DECIMALS %q", table, rf.Name, rf.Decimals)
	}

	switch f.Type {
	case TypeChar:
		if f.Length <= 0 {
			return nil, malformed("table %s: char field %s needs a LENGTH", table, rf.Name)
		}
	case TypeNumber:
		if f.Length <= 0 || f.Decimals > f.Length {
			return nil, malformed("table %s: number field %s needs LENGTH >= DECIMALS", table, rf.Name)
		}
	}
	if f.Sequence && f.Type != TypeInt {
		return nil, malformed("table %s: sequence field %s must be int", table, rf.Name)
	}
	if f.Sequence {
		f.Default = nil
	}
	return f, nil
}

// parseSize accepts "" (zero) and non-negative integers. Legacy documents
// spell text sizes as "small"/"medium"/"big"; those carry no size.
func parseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "small", "medium", "big":
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid size %q", s)
	}
	return n, nil
}

func splitFields(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
