package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server Driver
	"github.com/pkg/errors"
)

type MSSQLDialect struct{}

// Helper: MSSQL Driver (go-mssqldb) prefers @p1, @p2 named parameters over ?
// especially when prepared statements are involved or simple Exec.

func (d *MSSQLDialect) GetTablesQuery(schema string) string {
	// Use @p1 for schema binding
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'`
}

func (d *MSSQLDialect) GetColumnsQuery(schema string) string {
	return `
		SELECT 
			c.TABLE_NAME, 
			c.COLUMN_NAME, 
			c.DATA_TYPE, 
			c.CHARACTER_MAXIMUM_LENGTH, 
			c.NUMERIC_SCALE, 
			c.IS_NULLABLE, 
			CASE 
				WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
				ELSE ''
			END AS EXTRA
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = @p1 
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) GetIndexesQuery(schema string) string {
	return `
		SELECT 
			t.name,
			i.name,
			CASE WHEN i.is_unique = 1 THEN '1' ELSE '0' END,
			CASE WHEN i.is_primary_key = 1 THEN '1' ELSE '0' END,
			col.name,
			ic.key_ordinal
		FROM sys.indexes i
		JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
		JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
		JOIN sys.tables t ON i.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE s.name = @p1 AND ic.is_included_column = 0
		ORDER BY t.name, i.name, ic.key_ordinal
	`
}

func (d *MSSQLDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME WHERE KCU1.TABLE_SCHEMA = @p1`
}

// baseTables lists the qualified tables of schema inside the transaction.
func (d *MSSQLDialect) baseTables(ctx context.Context, tx *sql.Tx, schema string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, d.GetTablesQuery(schema), d.GetSchemaName(schema))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, d.QualifyTable(d.GetSchemaName(schema), t))
	}
	return tables, rows.Err()
}

func (d *MSSQLDialect) BeforeImport(ctx context.Context, tx *sql.Tx, schema string) error {
	// Disable all constraints so tables can be replaced in any order.
	// ALTER TABLE ... NOCHECK is transactional in SQL Server.
	tables, err := d.baseTables(ctx, tx, schema)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", t)); err != nil {
			return errors.Wrapf(err, "failed to disable constraints on %s", t)
		}
	}
	return nil
}

func (d *MSSQLDialect) AfterImport(ctx context.Context, tx *sql.Tx, schema string) error {
	tables, err := d.baseTables(ctx, tx, schema)
	if err != nil {
		return err
	}
	for _, t := range tables {
		// WITH CHECK validates the imported rows, so a dangling reference
		// fails the import instead of leaving an untrusted constraint.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT all", t)); err != nil {
			return errors.Wrapf(err, "failed to enable constraints on %s", t)
		}
	}
	return nil
}

func (d *MSSQLDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error {
	if !hasIdentity {
		return nil
	}
	// Explicit ids are only accepted while IDENTITY_INSERT is on, and only
	// one table per session may have it on at a time.
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s ON", tableName))
	return err
}

func (d *MSSQLDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error {
	if !hasIdentity {
		return nil
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s OFF", tableName))
	return err
}

func (d *MSSQLDialect) QualifyTable(schema, table string) string {
	return qualify(schema, table)
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *MSSQLDialect) DeleteQuery(table string) string {
	// TRUNCATE is refused on tables referenced by a foreign key, even a
	// disabled one.
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) ResetSequenceQuery(table, column string, next int64) string {
	// After RESEED n on a table that has held rows the next identity is n+1.
	return fmt.Sprintf("DBCC CHECKIDENT ('%s', RESEED, %d)", table, next-1)
}

func (d *MSSQLDialect) DeferSequenceReset() bool {
	return false
}

func (d *MSSQLDialect) TransactionalDDL() bool {
	return true
}

func (d *MSSQLDialect) CreateTableQuery(table string, cols []ColumnDef, primaryKey []string) string {
	clauses := make([]string, 0, len(cols))
	for _, c := range cols {
		typ := d.columnType(c)
		if c.Sequence {
			typ += " IDENTITY(1,1)"
		}
		clauses = append(clauses, columnClause(c, typ, true))
	}
	return createTable(table, clauses, primaryKey)
}

func (d *MSSQLDialect) CreateIndexQuery(table, name string, unique bool, cols []string) string {
	return createIndex(table, name, unique, cols)
}

func (d *MSSQLDialect) columnType(c ColumnDef) string {
	switch c.Type {
	case TypeInt:
		return [...]string{"SMALLINT", "INT", "BIGINT"}[intWidth(c.Length)]
	case TypeNumber:
		return fmt.Sprintf("DECIMAL(%d,%d)", c.Length, c.Decimals)
	case TypeFloat:
		return "FLOAT"
	case TypeChar:
		return fmt.Sprintf("NVARCHAR(%d)", c.Length)
	case TypeText:
		return "NVARCHAR(MAX)"
	case TypeBinary:
		return "VARBINARY(MAX)"
	case TypeDatetime:
		return "DATETIME2"
	default:
		return strings.ToUpper(c.Type)
	}
}

func (d *MSSQLDialect) TypeFamily(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "tinyint", "smallint", "int", "bigint":
		return TypeInt
	case "decimal", "numeric", "money", "smallmoney", "float", "real":
		return TypeNumber
	case "char", "varchar", "nchar", "nvarchar", "text", "ntext":
		return TypeChar
	case "image", "binary", "varbinary":
		return TypeBinary
	case "datetime", "datetime2", "smalldatetime", "date", "time", "datetimeoffset":
		return TypeDatetime
	default:
		return t
	}
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}
