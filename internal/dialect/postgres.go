package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresDialect struct{}

func (d *PostgresDialect) GetTablesQuery(schema string) string {
	// use $1 placeholder
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = $1 AND TABLE_TYPE = 'BASE TABLE'`
}

func (d *PostgresDialect) GetColumnsQuery(schema string) string {
	// UDT_NAME is more precise than DATA_TYPE (int4 vs integer).
	// Serial and identity columns are flagged as nextval in the extra column.
	return `SELECT 
    c.table_name, 
    c.column_name, 
    c.udt_name, 
    c.character_maximum_length, 
    c.numeric_scale, 
    c.is_nullable, 
    CASE WHEN c.column_default LIKE 'nextval(%' OR c.is_identity = 'YES' THEN 'nextval' ELSE '' END AS EXTRA
FROM information_schema.columns c
WHERE c.table_schema = $1 
ORDER BY c.table_name, c.ordinal_position`
}

func (d *PostgresDialect) GetIndexesQuery(schema string) string {
	return `SELECT 
    t.relname, 
    i.relname, 
    CASE WHEN ix.indisunique THEN '1' ELSE '0' END, 
    CASE WHEN ix.indisprimary THEN '1' ELSE '0' END, 
    a.attname, 
    k.ord
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1
ORDER BY t.relname, i.relname, k.ord`
}

func (d *PostgresDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name AS referenced_table_name, ccu.column_name AS referenced_column_name FROM information_schema.key_column_usage kcu JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'`
}

func (d *PostgresDialect) BeforeImport(ctx context.Context, tx *sql.Tx, schema string) error {
	// Foreign keys declared DEFERRABLE are checked at commit time, which lets
	// parent and child rows arrive in any order. session_replication_role
	// would also cover non-deferrable keys but needs superuser, and a
	// failed statement poisons the whole transaction.
	_, err := tx.ExecContext(ctx, "SET CONSTRAINTS ALL DEFERRED")
	return err
}

func (d *PostgresDialect) AfterImport(ctx context.Context, tx *sql.Tx, schema string) error {
	// Force the deferred checks now so a violation surfaces as an error
	// from the import rather than from COMMIT.
	_, err := tx.ExecContext(ctx, "SET CONSTRAINTS ALL IMMEDIATE")
	return err
}

func (d *PostgresDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *PostgresDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *PostgresDialect) QualifyTable(schema, table string) string {
	return qualify(schema, table)
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	// Generate placeholders ($1, $2, ...)
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *PostgresDialect) DeleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) ResetSequenceQuery(table, column string, next int64) string {
	// is_called = false makes the next nextval() return exactly `next`.
	return fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', '%s'), %d, false)", table, column, next)
}

func (d *PostgresDialect) DeferSequenceReset() bool {
	return false
}

func (d *PostgresDialect) TransactionalDDL() bool {
	return true
}

func (d *PostgresDialect) CreateTableQuery(table string, cols []ColumnDef, primaryKey []string) string {
	clauses := make([]string, 0, len(cols))
	for _, c := range cols {
		clauses = append(clauses, columnClause(c, d.columnType(c), true))
	}
	return createTable(table, clauses, primaryKey)
}

func (d *PostgresDialect) CreateIndexQuery(table, name string, unique bool, cols []string) string {
	return createIndex(table, name, unique, cols)
}

func (d *PostgresDialect) columnType(c ColumnDef) string {
	switch c.Type {
	case TypeInt:
		w := intWidth(c.Length)
		if c.Sequence {
			if w == 2 {
				return "BIGSERIAL"
			}
			return "SERIAL"
		}
		return [...]string{"SMALLINT", "INTEGER", "BIGINT"}[w]
	case TypeNumber:
		return fmt.Sprintf("NUMERIC(%d,%d)", c.Length, c.Decimals)
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeChar:
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case TypeText:
		return "TEXT"
	case TypeBinary:
		return "BYTEA"
	case TypeDatetime:
		return "TIMESTAMP"
	default:
		return strings.ToUpper(c.Type)
	}
}

func (d *PostgresDialect) TypeFamily(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int2", "int4", "int8", "smallint", "integer", "bigint", "serial", "bigserial":
		return TypeInt
	case "numeric", "decimal", "float4", "float8", "real", "double precision", "money":
		return TypeNumber
	case "varchar", "bpchar", "char", "text", "character varying", "character", "citext":
		return TypeChar
	case "bytea":
		return TypeBinary
	case "timestamp", "timestamptz", "date", "time", "timetz":
		return TypeDatetime
	default:
		return t
	}
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}
