package dialect

import (
	"fmt"
	"strings"
)

// XMLDB field types understood by the DDL generators.
const (
	TypeInt      = "int"
	TypeNumber   = "number"
	TypeFloat    = "float"
	TypeChar     = "char"
	TypeText     = "text"
	TypeBinary   = "binary"
	TypeDatetime = "datetime"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// columnClause assembles "name TYPE [DEFAULT x] [NOT NULL]". DEFAULT goes
// before NOT NULL because Oracle rejects the other order.
func columnClause(c ColumnDef, sqlType string, allowDefault bool) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(sqlType)
	if c.Default != nil && allowDefault && !c.Sequence {
		b.WriteString(" DEFAULT ")
		switch c.Type {
		case TypeInt, TypeNumber, TypeFloat:
			b.WriteString(*c.Default)
		default:
			b.WriteString(quoteLiteral(*c.Default))
		}
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// qualify prefixes table with schema when one is set.
func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// baseName strips the schema prefix from a qualified table name.
func baseName(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[i+1:]
	}
	return table
}

// createTable builds a CREATE TABLE statement from pre-rendered column clauses.
func createTable(table string, clauses []string, primaryKey []string) string {
	parts := append([]string{}, clauses...)
	if len(primaryKey) > 0 {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s_pk PRIMARY KEY (%s)", baseName(table), strings.Join(primaryKey, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", table, strings.Join(parts, ",\n    "))
}

func createIndex(table, name string, unique bool, cols []string) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, name, table, strings.Join(cols, ", "))
}

// intWidth picks a storage class for an XMLDB int of the given digit length:
// 0 small, 1 regular, 2 big.
func intWidth(length int) int {
	switch {
	case length > 0 && length <= 4:
		return 0
	case length > 0 && length <= 9:
		return 1
	default:
		return 2
	}
}
