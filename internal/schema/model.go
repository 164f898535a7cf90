package schema

import "strings"

// FieldType is an XMLDB column type.
type FieldType string

const (
	TypeInt      FieldType = "int"
	TypeNumber   FieldType = "number"
	TypeFloat    FieldType = "float"
	TypeChar     FieldType = "char"
	TypeText     FieldType = "text"
	TypeBinary   FieldType = "binary"
	TypeDatetime FieldType = "datetime"
)

// Family groups field types that a live database cannot tell apart
// reliably (char vs text, number vs float).
type Family string

const (
	FamilyInteger   Family = "integer"
	FamilyNumeric   Family = "numeric"
	FamilyCharacter Family = "character"
	FamilyBinary    Family = "binary"
	FamilyDatetime  Family = "datetime"
)

func (t FieldType) Valid() bool {
	switch t {
	case TypeInt, TypeNumber, TypeFloat, TypeChar, TypeText, TypeBinary, TypeDatetime:
		return true
	}
	return false
}

func (t FieldType) Family() Family {
	switch t {
	case TypeInt:
		return FamilyInteger
	case TypeNumber, TypeFloat:
		return FamilyNumeric
	case TypeChar, TypeText:
		return FamilyCharacter
	case TypeBinary:
		return FamilyBinary
	case TypeDatetime:
		return FamilyDatetime
	}
	return Family(t)
}

// Document is an ordered set of uniquely named tables.
type Document struct {
	Path    string
	Version string
	Comment string
	Tables  []*Table

	byName map[string]*Table
}

// NewDocument builds a document from already validated tables.
func NewDocument(tables ...*Table) *Document {
	d := &Document{Tables: tables}
	d.reindex()
	return d
}

func (d *Document) reindex() {
	d.byName = make(map[string]*Table, len(d.Tables))
	for _, t := range d.Tables {
		d.byName[strings.ToLower(t.Name)] = t
	}
}

// Table looks a table up by name, ignoring case. Returns nil when absent.
func (d *Document) Table(name string) *Table {
	if d.byName == nil {
		d.reindex()
	}
	return d.byName[strings.ToLower(name)]
}

// TableNames returns the table names in document order.
func (d *Document) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}

// Ordered returns the tables sorted so that referenced tables come first.
func (d *Document) Ordered() []*Table {
	return SortTablesByFKCount(d.Tables)
}

type Table struct {
	Name         string
	Comment      string
	Fields       []*Field
	Indexes      []*Index
	ForeignKeys  []*ForeignKey
	Dependencies []string
}

type Field struct {
	Name     string
	Type     FieldType
	Length   int
	Decimals int
	NotNull  bool
	Sequence bool
	Default  *string
	Comment  string
}

// Index covers both XMLDB indexes and primary/unique keys.
type Index struct {
	Name    string
	Unique  bool
	Primary bool
	Fields  []string
}

type ForeignKey struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
}

// Field looks a field up by name, ignoring case. Returns nil when absent.
func (t *Table) Field(name string) *Field {
	for _, f := range t.Fields {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// SequenceField returns the auto-increment field, or nil.
func (t *Table) SequenceField() *Field {
	for _, f := range t.Fields {
		if f.Sequence {
			return f
		}
	}
	return nil
}

// PrimaryKey returns the primary key columns in key order.
func (t *Table) PrimaryKey() []string {
	for _, idx := range t.Indexes {
		if idx.Primary {
			return idx.Fields
		}
	}
	return nil
}

func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}
