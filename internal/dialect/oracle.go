package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type OracleDialect struct{}

func (d *OracleDialect) GetTablesQuery(schema string) string {
	// USER_TABLES lists tables owned by the current user.
	// We include a dummy clause to consume the schema argument if passed by standard callers.
	return `SELECT TABLE_NAME FROM USER_TABLES WHERE :1 IS NOT NULL`
}

func (d *OracleDialect) GetColumnsQuery(schema string) string {
	// NUMBER with a scale is reported as DECIMAL, without one as INTEGER,
	// so TypeFamily can tell the two apart from the type name alone.
	return `
SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE = 'NUMBER' AND COALESCE(t.DATA_SCALE, 0) > 0 THEN 'DECIMAL'
        WHEN t.DATA_TYPE = 'NUMBER' THEN 'INTEGER'
        ELSE t.DATA_TYPE
    END,
    COALESCE(t.DATA_PRECISION, t.CHAR_LENGTH),
    t.DATA_SCALE,
    t.NULLABLE,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END
FROM USER_TAB_COLUMNS t
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`
}

func (d *OracleDialect) GetIndexesQuery(schema string) string {
	return `
SELECT
    ic.TABLE_NAME,
    ic.INDEX_NAME,
    CASE WHEN i.UNIQUENESS = 'UNIQUE' THEN '1' ELSE '0' END,
    CASE WHEN c.CONSTRAINT_NAME IS NOT NULL THEN '1' ELSE '0' END,
    ic.COLUMN_NAME,
    ic.COLUMN_POSITION
FROM USER_IND_COLUMNS ic
JOIN USER_INDEXES i ON i.INDEX_NAME = ic.INDEX_NAME
LEFT JOIN USER_CONSTRAINTS c ON c.INDEX_NAME = ic.INDEX_NAME AND c.CONSTRAINT_TYPE = 'P'
WHERE :1 IS NOT NULL
ORDER BY ic.TABLE_NAME, ic.INDEX_NAME, ic.COLUMN_POSITION`
}

func (d *OracleDialect) GetForeignKeysQuery(schema string) string {
	return `
SELECT
    c.TABLE_NAME,
    c.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    r.TABLE_NAME AS REF_TABLE,
    rcc.COLUMN_NAME AS REF_COLUMN
FROM USER_CONSTRAINTS c
JOIN USER_CONS_COLUMNS cc
    ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
    AND c.OWNER = cc.OWNER
JOIN USER_CONSTRAINTS r
    ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND c.R_OWNER = r.OWNER
JOIN USER_CONS_COLUMNS rcc
    ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME
    AND r.OWNER = rcc.OWNER
    AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R'
AND :1 IS NOT NULL`
}

func (d *OracleDialect) BeforeImport(ctx context.Context, tx *sql.Tx, schema string) error {
	// Dataset timestamps use "2006-01-02 15:04:05".
	if _, err := tx.ExecContext(ctx, "ALTER SESSION SET NLS_DATE_FORMAT = 'YYYY-MM-DD HH24:MI:SS'"); err != nil {
		return errors.Wrap(err, "failed to set NLS_DATE_FORMAT")
	}
	if _, err := tx.ExecContext(ctx, "ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SS'"); err != nil {
		return errors.Wrap(err, "failed to set NLS_TIMESTAMP_FORMAT")
	}
	// Constraints stay enabled: ALTER TABLE ... DISABLE CONSTRAINT is DDL and
	// would commit the import transaction. Tables arrive in dependency order.
	return nil
}

func (d *OracleDialect) AfterImport(ctx context.Context, tx *sql.Tx, schema string) error {
	return nil
}

func (d *OracleDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *OracleDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

// QualifyTable leaves names unqualified: introspection reads the USER_
// views, so the tables are the connecting user's.
func (d *OracleDialect) QualifyTable(schema, table string) string {
	return table
}

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(cols, ", "),
		vals)
}

func (d *OracleDialect) DeleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) ResetSequenceQuery(table, column string, next int64) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY (%s GENERATED BY DEFAULT AS IDENTITY (START WITH %d))", table, column, next)
}

func (d *OracleDialect) DeferSequenceReset() bool {
	return true
}

func (d *OracleDialect) TransactionalDDL() bool {
	return false
}

func (d *OracleDialect) CreateTableQuery(table string, cols []ColumnDef, primaryKey []string) string {
	clauses := make([]string, 0, len(cols))
	for _, c := range cols {
		typ := d.columnType(c)
		if c.Sequence {
			typ += " GENERATED BY DEFAULT AS IDENTITY"
		}
		// LOB columns cannot take a literal default.
		allowDefault := c.Type != TypeText && c.Type != TypeBinary
		clauses = append(clauses, columnClause(c, typ, allowDefault))
	}
	return createTable(table, clauses, primaryKey)
}

func (d *OracleDialect) CreateIndexQuery(table, name string, unique bool, cols []string) string {
	return createIndex(table, name, unique, cols)
}

func (d *OracleDialect) columnType(c ColumnDef) string {
	switch c.Type {
	case TypeInt:
		if c.Length > 0 {
			return fmt.Sprintf("NUMBER(%d)", c.Length)
		}
		return "NUMBER(20)"
	case TypeNumber:
		return fmt.Sprintf("NUMBER(%d,%d)", c.Length, c.Decimals)
	case TypeFloat:
		return "BINARY_DOUBLE"
	case TypeChar:
		return fmt.Sprintf("VARCHAR2(%d CHAR)", c.Length)
	case TypeText:
		return "CLOB"
	case TypeBinary:
		return "BLOB"
	case TypeDatetime:
		return "TIMESTAMP"
	default:
		return strings.ToUpper(c.Type)
	}
}

func (d *OracleDialect) TypeFamily(sqlType string) string {
	s := strings.ToLower(sqlType)
	switch {
	case s == "integer":
		return TypeInt
	case s == "decimal" || strings.Contains(s, "float") || strings.Contains(s, "double") || s == "number":
		return TypeNumber
	case strings.Contains(s, "char") || strings.Contains(s, "clob"):
		return TypeChar
	case strings.Contains(s, "blob") || strings.Contains(s, "raw"):
		return TypeBinary
	case strings.Contains(s, "date") || strings.Contains(s, "time"):
		return TypeDatetime
	default:
		return s
	}
}

func (d *OracleDialect) GetSchemaName(input string) string {
	return input
}
