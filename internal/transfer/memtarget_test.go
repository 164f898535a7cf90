package transfer_test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"db-transfer/internal/schema"
	"db-transfer/internal/transfer"
)

const testSchema = `<?xml version="1.0" encoding="UTF-8"?>
<XMLDB PATH="lib/db" VERSION="2008120100" COMMENT="test tables">
  <TABLES>
    <TABLE NAME="course">
      <FIELDS>
        <FIELD NAME="id" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="true"/>
        <FIELD NAME="category" TYPE="int" LENGTH="10" NOTNULL="true" DEFAULT="0"/>
        <FIELD NAME="fullname" TYPE="char" LENGTH="254" NOTNULL="true"/>
        <FIELD NAME="summary" TYPE="text" NOTNULL="false"/>
      </FIELDS>
      <KEYS>
        <KEY NAME="primary" TYPE="primary" FIELDS="id"/>
        <KEY NAME="category" TYPE="foreign" FIELDS="category" REFTABLE="course_categories" REFFIELDS="id"/>
      </KEYS>
    </TABLE>
    <TABLE NAME="course_categories">
      <FIELDS>
        <FIELD NAME="id" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="true"/>
        <FIELD NAME="name" TYPE="char" LENGTH="255" NOTNULL="true"/>
      </FIELDS>
      <KEYS>
        <KEY NAME="primary" TYPE="primary" FIELDS="id"/>
      </KEYS>
    </TABLE>
    <TABLE NAME="config">
      <FIELDS>
        <FIELD NAME="name" TYPE="char" LENGTH="255" NOTNULL="true"/>
        <FIELD NAME="value" TYPE="text" NOTNULL="false"/>
      </FIELDS>
      <KEYS>
        <KEY NAME="primary" TYPE="primary" FIELDS="name"/>
      </KEYS>
    </TABLE>
  </TABLES>
</XMLDB>
`

func loadDoc(t *testing.T) *schema.Document {
	t.Helper()
	doc, err := schema.Load(strings.NewReader(testSchema))
	require.NoError(t, err)
	return doc
}

// memTable is one table of memDB. next is the sequence counter; explicit
// inserts do not move it, as on Postgres.
type memTable struct {
	def  *schema.Table
	rows []transfer.Record
	next int64
}

// memDB is an in-memory transfer.Target and transfer.RowReader.
// Transactions work on a snapshot that replaces the committed state on
// Commit.
type memDB struct {
	tables map[string]*memTable

	// failInsert, when set, can reject an insert.
	failInsert func(table string, rec transfer.Record) error

	installs  int
	begins    int
	commits   int
	rollbacks int
	mutations int
}

func newMemDB() *memDB {
	return &memDB{tables: make(map[string]*memTable)}
}

// installedDB returns a memDB holding every table of doc.
func installedDB(t *testing.T, doc *schema.Document) *memDB {
	t.Helper()
	db := newMemDB()
	require.NoError(t, db.Install(context.Background(), doc))
	db.installs = 0
	return db
}

func (m *memDB) TableNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m.tables))
	for _, mt := range m.tables {
		names = append(names, mt.def.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memDB) Introspect(ctx context.Context) ([]*schema.Table, error) {
	names, _ := m.TableNames(ctx)
	out := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		out = append(out, cloneTable(m.tables[strings.ToLower(name)].def))
	}
	return out, nil
}

func (m *memDB) Install(ctx context.Context, doc *schema.Document) error {
	for _, t := range doc.Tables {
		m.tables[strings.ToLower(t.Name)] = &memTable{def: t, next: 1}
	}
	m.installs++
	return nil
}

func (m *memDB) Begin(ctx context.Context) (transfer.TargetTx, error) {
	m.begins++
	return &memTx{db: m, work: snapshot(m.tables)}, nil
}

func (m *memDB) ReadTable(ctx context.Context, t *schema.Table, fn func(transfer.Record) error) error {
	mt, ok := m.tables[strings.ToLower(t.Name)]
	if !ok {
		return errors.Errorf("table %s does not exist", t.Name)
	}
	for _, rec := range mt.rows {
		if err := fn(copyRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

// insert adds a row outside any session, like an application would.
func (m *memDB) insert(t *testing.T, table string, rec transfer.Record) transfer.Record {
	t.Helper()
	mt, ok := m.tables[table]
	require.True(t, ok, "table %s", table)
	stored, err := insertRow(mt, mt.def, rec)
	require.NoError(t, err)
	return stored
}

func (m *memDB) rows(table string) []transfer.Record {
	mt, ok := m.tables[table]
	if !ok {
		return nil
	}
	return append([]transfer.Record(nil), mt.rows...)
}

func (m *memDB) drop(table string) {
	delete(m.tables, table)
}

// alter changes the live structure of table without touching the declared one.
func (m *memDB) alter(table string, fn func(*schema.Table)) {
	mt := m.tables[table]
	mt.def = cloneTable(mt.def)
	fn(mt.def)
}

type memTx struct {
	db   *memDB
	work map[string]*memTable
	done bool
}

func (tx *memTx) table(name string) (*memTable, error) {
	if tx.done {
		return nil, errors.New("transaction already finished")
	}
	mt, ok := tx.work[strings.ToLower(name)]
	if !ok {
		return nil, errors.Errorf("table %s does not exist", name)
	}
	return mt, nil
}

func (tx *memTx) TableExists(ctx context.Context, table string) (bool, error) {
	_, ok := tx.work[strings.ToLower(table)]
	return ok, nil
}

func (tx *memTx) DeleteAll(ctx context.Context, t *schema.Table) error {
	mt, err := tx.table(t.Name)
	if err != nil {
		return err
	}
	mt.rows = nil
	tx.db.mutations++
	return nil
}

func (tx *memTx) Insert(ctx context.Context, t *schema.Table, rec transfer.Record) error {
	mt, err := tx.table(t.Name)
	if err != nil {
		return err
	}
	if tx.db.failInsert != nil {
		if err := tx.db.failInsert(t.Name, rec); err != nil {
			return err
		}
	}
	if _, err := insertRow(mt, t, rec); err != nil {
		return err
	}
	tx.db.mutations++
	return nil
}

func (tx *memTx) ResetSequence(ctx context.Context, t *schema.Table, f *schema.Field) error {
	mt, err := tx.table(t.Name)
	if err != nil {
		return err
	}
	var max int64
	for _, rec := range mt.rows {
		if v := toInt64(rec[f.Name]); v > max {
			max = v
		}
	}
	mt.next = max + 1
	tx.db.mutations++
	return nil
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true
	tx.db.tables = tx.work
	tx.db.commits++
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true
	tx.db.rollbacks++
	return nil
}

func insertRow(mt *memTable, t *schema.Table, rec transfer.Record) (transfer.Record, error) {
	for col := range rec {
		if t.Field(col) == nil {
			return nil, errors.Errorf("column %s.%s does not exist", t.Name, col)
		}
	}
	stored := copyRecord(rec)
	if seq := t.SequenceField(); seq != nil {
		if v, ok := stored[seq.Name]; !ok || v == nil {
			stored[seq.Name] = mt.next
			mt.next++
		}
		id := toInt64(stored[seq.Name])
		for _, row := range mt.rows {
			if toInt64(row[seq.Name]) == id {
				return nil, fmt.Errorf("duplicate key %s.%s = %d", t.Name, seq.Name, id)
			}
		}
	}
	mt.rows = append(mt.rows, stored)
	return stored, nil
}

func snapshot(tables map[string]*memTable) map[string]*memTable {
	out := make(map[string]*memTable, len(tables))
	for k, mt := range tables {
		out[k] = &memTable{def: mt.def, rows: append([]transfer.Record(nil), mt.rows...), next: mt.next}
	}
	return out
}

func cloneTable(t *schema.Table) *schema.Table {
	c := &schema.Table{Name: t.Name}
	for _, f := range t.Fields {
		cf := *f
		c.Fields = append(c.Fields, &cf)
	}
	for _, idx := range t.Indexes {
		ci := *idx
		ci.Fields = append([]string(nil), idx.Fields...)
		c.Indexes = append(c.Indexes, &ci)
	}
	return c
}

func copyRecord(rec transfer.Record) transfer.Record {
	out := make(transfer.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

type tableData struct {
	name string
	rows []transfer.Record
}

// memSource replays a fixed dataset.
type memSource struct {
	header transfer.Header
	doc    *schema.Document
	tables []tableData
	// stopAfter, when positive, ends the stream early without error.
	stopAfter int
}

func (s memSource) Stream(ctx context.Context, sink transfer.Sink) error {
	if err := sink.Begin(ctx, s.header); err != nil {
		return err
	}
	for i, td := range s.tables {
		if s.stopAfter > 0 && i == s.stopAfter {
			return nil
		}
		if err := sink.BeginTable(ctx, td.name, s.doc.Table(td.name).Hash()); err != nil {
			return err
		}
		for _, rec := range td.rows {
			if err := sink.Record(ctx, td.name, rec); err != nil {
				return err
			}
		}
		if err := sink.EndTable(ctx, td.name); err != nil {
			return err
		}
	}
	return sink.End(ctx)
}

func sampleSource(doc *schema.Document) memSource {
	return memSource{
		header: transfer.Header{Version: "2008120100"},
		doc:    doc,
		tables: []tableData{
			{name: "course_categories", rows: []transfer.Record{
				{"id": int64(1), "name": "Miscellaneous"},
				{"id": int64(4), "name": "Science"},
			}},
			{name: "course", rows: []transfer.Record{
				{"id": int64(1), "category": int64(1), "fullname": "Front page", "summary": nil},
				{"id": int64(2), "category": int64(4), "fullname": "Physics", "summary": "Forces"},
				{"id": int64(3), "category": int64(4), "fullname": "Chemistry", "summary": "Bonds"},
			}},
			{name: "config", rows: []transfer.Record{
				{"name": "theme", "value": "standard"},
				{"name": "lang", "value": nil},
			}},
		},
	}
}

// assertContent checks that db holds exactly the rows of src.
func assertContent(t *testing.T, db *memDB, src memSource) {
	t.Helper()
	for _, td := range src.tables {
		require.Equal(t, td.rows, db.rows(td.name), "table %s", td.name)
	}
}
