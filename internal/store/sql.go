// Package store implements the transfer target and source on top of a
// database/sql connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"db-transfer/internal/dialect"
	"db-transfer/internal/schema"
	"db-transfer/internal/transfer"
)

// SQL is a relational database reachable through one of the registered
// drivers.
type SQL struct {
	db      *sqlx.DB
	driver  string
	dialect dialect.Dialect
	schema  string
	log     *slog.Logger
}

var (
	_ transfer.Target    = (*SQL)(nil)
	_ transfer.RowReader = (*SQL)(nil)
)

// Open connects to dsn and resolves the schema the tables live in.
// An empty schemaName picks the engine default (current database on MySQL,
// current user on Oracle).
func Open(ctx context.Context, driver, dsn, schemaName string, log *slog.Logger) (*SQL, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", driver)
	}
	s := New(db, driver, schemaName, log)
	if err := s.resolveSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection.
func New(db *sqlx.DB, driver, schemaName string, log *slog.Logger) *SQL {
	if log == nil {
		log = slog.Default()
	}
	d := dialect.GetDialect(driver)
	return &SQL{
		db:      db,
		driver:  driver,
		dialect: d,
		schema:  d.GetSchemaName(schemaName),
		log:     log.With("driver", driver),
	}
}

func (s *SQL) resolveSchema(ctx context.Context) error {
	if s.schema != "" {
		return nil
	}
	var q string
	switch s.dialect.(type) {
	case *dialect.MysqlDialect:
		q = "SELECT DATABASE()"
	case *dialect.OracleDialect:
		q = "SELECT USER FROM DUAL"
	default:
		return nil
	}
	if err := s.db.GetContext(ctx, &s.schema, q); err != nil {
		return errors.Wrap(err, "resolve schema name")
	}
	if s.schema == "" {
		return errors.New("no database selected in DSN")
	}
	return nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) Driver() string { return s.driver }

func (s *SQL) Schema() string { return s.schema }

// table qualifies name with the store's schema the way the dialect expects.
func (s *SQL) table(name string) string {
	return s.dialect.QualifyTable(s.schema, name)
}

func (s *SQL) TableNames(ctx context.Context) ([]string, error) {
	return tableNames(ctx, s.db, s.dialect, s.schema)
}

// Introspect reads the live table structure.
func (s *SQL) Introspect(ctx context.Context) ([]*schema.Table, error) {
	return schema.Analyze(ctx, s.db, s.dialect, s.schema)
}

// Install creates every table of doc, parents first, with its indexes.
// Engines with transactional DDL run the whole bootstrap in one
// transaction. On the others a failure drops the tables created so far,
// so a retry still finds an empty target.
func (s *SQL) Install(ctx context.Context, doc *schema.Document) error {
	if s.dialect.TransactionalDDL() {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := s.createTables(ctx, tx, doc); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	created, err := s.createTables(ctx, s.db, doc)
	if err != nil {
		s.dropTables(created)
		return err
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// createTables returns the qualified names of the tables it created.
func (s *SQL) createTables(ctx context.Context, db execer, doc *schema.Document) ([]string, error) {
	var created []string
	for _, t := range doc.Ordered() {
		name := s.table(t.Name)
		q := s.dialect.CreateTableQuery(name, columnDefs(t), t.PrimaryKey())
		if _, err := db.ExecContext(ctx, q); err != nil {
			return created, errors.Wrapf(err, "create table %s", t.Name)
		}
		created = append(created, name)
		for _, idx := range t.Indexes {
			if idx.Primary {
				continue
			}
			q := s.dialect.CreateIndexQuery(name, indexName(t, idx), idx.Unique, idx.Fields)
			if _, err := db.ExecContext(ctx, q); err != nil {
				return created, errors.Wrapf(err, "create index %s on %s", idx.Name, t.Name)
			}
		}
		s.log.Debug("table created", "table", name)
	}
	return created, nil
}

// dropTables removes tables children first. It runs after a failed
// bootstrap, possibly with a cancelled context, so it uses its own.
func (s *SQL) dropTables(tables []string) {
	ctx := context.Background()
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE "+tables[i]); err != nil {
			s.log.Error("drop of partially installed table failed", "table", tables[i], "error", err)
			continue
		}
		s.log.Warn("partially installed table dropped", "table", tables[i])
	}
}

// Begin opens a transaction with foreign key enforcement relaxed.
func (s *SQL) Begin(ctx context.Context) (transfer.TargetTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := s.dialect.BeforeImport(ctx, tx.Tx, s.schema); err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "prepare import")
	}
	return &sqlTx{store: s, tx: tx}, nil
}

// ReadTable streams every row of t, ordered by primary key when there is one.
func (s *SQL) ReadTable(ctx context.Context, t *schema.Table, fn func(transfer.Record) error) error {
	rows, err := s.db.QueryxContext(ctx, selectQuery(t, s.table(t.Name)))
	if err != nil {
		return errors.Wrapf(err, "select from %s", t.Name)
	}
	defer rows.Close()

	for rows.Next() {
		raw := make(map[string]any, len(t.Fields))
		if err := rows.MapScan(raw); err != nil {
			return errors.Wrapf(err, "scan %s", t.Name)
		}
		if err := fn(normalizeRecord(t, raw)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountRows returns the number of rows in table.
func (s *SQL) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table(table))); err != nil {
		return 0, errors.Wrapf(err, "count %s", table)
	}
	return n, nil
}

type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

func tableNames(ctx context.Context, q queryer, d dialect.Dialect, schemaName string) ([]string, error) {
	rows, err := q.QueryxContext(ctx, d.GetTablesQuery(schemaName), schemaName)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan table name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// sqlTx is one import session. Sequence resets that the dialect cannot run
// inside a transaction are queued and executed after Commit.
type sqlTx struct {
	store    *SQL
	tx       *sqlx.Tx
	tables   map[string]bool
	identity string
	deferred []string
}

func (t *sqlTx) TableExists(ctx context.Context, table string) (bool, error) {
	if t.tables == nil {
		names, err := tableNames(ctx, t.tx, t.store.dialect, t.store.schema)
		if err != nil {
			return false, err
		}
		t.tables = make(map[string]bool, len(names))
		for _, n := range names {
			t.tables[strings.ToLower(n)] = true
		}
	}
	return t.tables[strings.ToLower(table)], nil
}

// DeleteAll clears the table and, for tables with a sequence, enables
// explicit identity inserts until the sequence is reset.
func (t *sqlTx) DeleteAll(ctx context.Context, tbl *schema.Table) error {
	if err := t.closeIdentity(ctx); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, t.store.dialect.DeleteQuery(t.store.table(tbl.Name))); err != nil {
		return err
	}
	if tbl.SequenceField() != nil {
		name := t.store.table(tbl.Name)
		if err := t.store.dialect.BeforeTable(ctx, t.tx.Tx, name, true); err != nil {
			return errors.Wrapf(err, "enable identity insert on %s", tbl.Name)
		}
		t.identity = name
	}
	return nil
}

func (t *sqlTx) Insert(ctx context.Context, tbl *schema.Table, rec transfer.Record) error {
	cols, args, err := insertArgs(tbl, rec)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, t.store.dialect.InsertQuery(t.store.table(tbl.Name), cols), args...)
	return err
}

func (t *sqlTx) ResetSequence(ctx context.Context, tbl *schema.Table, f *schema.Field) error {
	if err := t.closeIdentity(ctx); err != nil {
		return err
	}
	next, err := t.nextValue(ctx, tbl, f)
	if err != nil {
		return err
	}
	q := t.store.dialect.ResetSequenceQuery(t.store.table(tbl.Name), f.Name, next)
	if t.store.dialect.DeferSequenceReset() {
		t.deferred = append(t.deferred, q)
		return nil
	}
	_, err = t.tx.ExecContext(ctx, q)
	return err
}

func (t *sqlTx) nextValue(ctx context.Context, tbl *schema.Table, f *schema.Field) (int64, error) {
	var max sql.NullInt64
	q := fmt.Sprintf("SELECT MAX(%s) FROM %s", f.Name, t.store.table(tbl.Name))
	if err := t.tx.GetContext(ctx, &max, q); err != nil {
		return 0, errors.Wrapf(err, "read max %s.%s", tbl.Name, f.Name)
	}
	return max.Int64 + 1, nil
}

func (t *sqlTx) Commit(ctx context.Context) error {
	if err := t.closeIdentity(ctx); err != nil {
		return err
	}
	if err := t.store.dialect.AfterImport(ctx, t.tx.Tx, t.store.schema); err != nil {
		return errors.Wrap(err, "finish import")
	}
	if err := t.tx.Commit(); err != nil {
		return err
	}
	var failed []string
	for _, q := range t.deferred {
		if _, err := t.store.db.ExecContext(ctx, q); err != nil {
			t.store.log.Error("sequence reset failed", "query", q, "error", err)
			failed = append(failed, q)
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("data committed but %d sequence resets failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqlTx) closeIdentity(ctx context.Context) error {
	if t.identity == "" {
		return nil
	}
	name := t.identity
	t.identity = ""
	if err := t.store.dialect.AfterTable(ctx, t.tx.Tx, name, true); err != nil {
		return errors.Wrapf(err, "disable identity insert on %s", name)
	}
	return nil
}
