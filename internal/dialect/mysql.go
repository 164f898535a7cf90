package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) GetTablesQuery(schema string) string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'`
}

func (d *MysqlDialect) GetColumnsQuery(schema string) string {
	return `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, NUMERIC_SCALE, IS_NULLABLE, EXTRA FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetIndexesQuery(schema string) string {
	return `SELECT TABLE_NAME, INDEX_NAME, IF(NON_UNIQUE = 0, '1', '0'), IF(INDEX_NAME = 'PRIMARY', '1', '0'), COLUMN_NAME, SEQ_IN_INDEX FROM information_schema.STATISTICS WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`
}

func (d *MysqlDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL`
}

func (d *MysqlDialect) BeforeImport(ctx context.Context, tx *sql.Tx, schema string) error {
	_, err := tx.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0")
	return err
}

func (d *MysqlDialect) AfterImport(ctx context.Context, tx *sql.Tx, schema string) error {
	_, err := tx.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
	return err
}

func (d *MysqlDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *MysqlDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *MysqlDialect) QualifyTable(schema, table string) string {
	return qualify(schema, table)
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *MysqlDialect) DeleteQuery(table string) string {
	// TRUNCATE is DDL in MySQL and commits implicitly.
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) ResetSequenceQuery(table, column string, next int64) string {
	return fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = %d", table, next)
}

func (d *MysqlDialect) DeferSequenceReset() bool {
	return true
}

func (d *MysqlDialect) TransactionalDDL() bool {
	return false
}

func (d *MysqlDialect) CreateTableQuery(table string, cols []ColumnDef, primaryKey []string) string {
	clauses := make([]string, 0, len(cols))
	for _, c := range cols {
		typ := d.columnType(c)
		// TEXT and BLOB columns cannot carry a literal default.
		allowDefault := c.Type != TypeText && c.Type != TypeBinary
		clause := columnClause(c, typ, allowDefault)
		if c.Sequence {
			clause += " AUTO_INCREMENT"
		}
		clauses = append(clauses, clause)
	}
	return createTable(table, clauses, primaryKey)
}

func (d *MysqlDialect) CreateIndexQuery(table, name string, unique bool, cols []string) string {
	return createIndex(table, name, unique, cols)
}

func (d *MysqlDialect) columnType(c ColumnDef) string {
	switch c.Type {
	case TypeInt:
		switch {
		case c.Length > 0 && c.Length <= 2:
			return "TINYINT"
		default:
			return [...]string{"SMALLINT", "INT", "BIGINT"}[intWidth(c.Length)]
		}
	case TypeNumber:
		return fmt.Sprintf("DECIMAL(%d,%d)", c.Length, c.Decimals)
	case TypeFloat:
		return "DOUBLE"
	case TypeChar:
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case TypeText:
		return "LONGTEXT"
	case TypeBinary:
		return "LONGBLOB"
	case TypeDatetime:
		return "DATETIME"
	default:
		return strings.ToUpper(c.Type)
	}
}

func (d *MysqlDialect) TypeFamily(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		return TypeInt
	case "decimal", "numeric", "float", "double", "real":
		return TypeNumber
	case "char", "varchar", "tinytext", "text", "mediumtext", "longtext", "enum", "set":
		return TypeChar
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob":
		return TypeBinary
	case "date", "datetime", "timestamp", "time", "year":
		return TypeDatetime
	default:
		return t
	}
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}
