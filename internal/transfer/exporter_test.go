package transfer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-transfer/internal/transfer"
)

// recordingSink remembers the protocol calls it receives.
type recordingSink struct {
	header transfer.Header
	calls  []string
	hashes map[string]string
	rows   map[string][]transfer.Record
}

func newRecordingSink() *recordingSink {
	return &recordingSink{hashes: map[string]string{}, rows: map[string][]transfer.Record{}}
}

func (s *recordingSink) Begin(ctx context.Context, h transfer.Header) error {
	s.header = h
	s.calls = append(s.calls, "begin")
	return nil
}

func (s *recordingSink) BeginTable(ctx context.Context, table, hash string) error {
	s.hashes[table] = hash
	s.calls = append(s.calls, "table "+table)
	return nil
}

func (s *recordingSink) Record(ctx context.Context, table string, rec transfer.Record) error {
	s.rows[table] = append(s.rows[table], rec)
	return nil
}

func (s *recordingSink) EndTable(ctx context.Context, table string) error {
	s.calls = append(s.calls, "end "+table)
	return nil
}

func (s *recordingSink) End(ctx context.Context) error {
	s.calls = append(s.calls, "end")
	return nil
}

func seededDB(t *testing.T) (*memDB, memSource) {
	t.Helper()
	doc := loadDoc(t)
	db := newMemDB()
	src := sampleSource(doc)
	require.NoError(t, transfer.NewImporter(db, doc, transfer.Options{}).Import(context.Background(), src))
	return db, src
}

func TestExporter_Stream(t *testing.T) {
	doc := loadDoc(t)
	db, src := seededDB(t)
	at := time.Date(2008, 12, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	sink := newRecordingSink()
	ex := transfer.NewExporter(db, doc, transfer.ExportOptions{
		Description: "nightly",
		CheckSchema: true,
		Now:         func() time.Time { return at },
	})
	require.NoError(t, ex.Stream(context.Background(), sink))

	assert.Equal(t, transfer.Header{Version: "2008120100", Timestamp: at.UTC(), Description: "nightly"}, sink.header)
	assert.Equal(t, "begin", sink.calls[0])
	assert.Equal(t, "end", sink.calls[len(sink.calls)-1])
	assert.Less(t, indexOf(sink.calls, "end course_categories"), indexOf(sink.calls, "table course"))
	assert.Equal(t, doc.Table("course").Hash(), sink.hashes["course"])
	for _, td := range src.tables {
		assert.Equal(t, td.rows, sink.rows[td.name], "table %s", td.name)
	}
}

func TestExporter_TableFilter(t *testing.T) {
	doc := loadDoc(t)
	db, _ := seededDB(t)

	sink := newRecordingSink()
	ex := transfer.NewExporter(db, doc, transfer.ExportOptions{Tables: []string{"CONFIG"}})
	require.NoError(t, ex.Stream(context.Background(), sink))
	assert.Equal(t, []string{"begin", "table config", "end config", "end"}, sink.calls)

	ex = transfer.NewExporter(db, doc, transfer.ExportOptions{Tables: []string{"nope"}})
	var uErr *transfer.UnknownTableError
	assert.ErrorAs(t, ex.Stream(context.Background(), newRecordingSink()), &uErr)
}

func TestMove(t *testing.T) {
	doc := loadDoc(t)
	from, src := seededDB(t)
	to := installedDB(t, doc)
	to.insert(t, "config", transfer.Record{"name": "local", "value": "x"})

	ex := transfer.NewExporter(from, doc, transfer.ExportOptions{})
	im := transfer.NewImporter(to, doc, transfer.Options{CheckSchema: true})
	require.NoError(t, transfer.Move(context.Background(), ex, im))

	assertContent(t, to, src)
	assert.Len(t, im.Results(), 3)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
