package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-transfer/internal/schema"
	"db-transfer/internal/transfer"
)

const storeSchema = `<?xml version="1.0" encoding="UTF-8"?>
<XMLDB PATH="lib/db" VERSION="2008120100">
  <TABLES>
    <TABLE NAME="files">
      <FIELDS>
        <FIELD NAME="id" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="true"/>
        <FIELD NAME="filename" TYPE="char" LENGTH="255" NOTNULL="true" DEFAULT="unnamed"/>
        <FIELD NAME="content" TYPE="binary" NOTNULL="false"/>
        <FIELD NAME="timecreated" TYPE="int" LENGTH="10" NOTNULL="true" DEFAULT="0"/>
      </FIELDS>
      <KEYS>
        <KEY NAME="primary" TYPE="primary" FIELDS="id"/>
      </KEYS>
      <INDEXES>
        <INDEX NAME="filename" UNIQUE="true" FIELDS="filename"/>
      </INDEXES>
    </TABLE>
  </TABLES>
</XMLDB>
`

func filesTable(t *testing.T) *schema.Table {
	t.Helper()
	doc, err := schema.Load(strings.NewReader(storeSchema))
	require.NoError(t, err)
	return doc.Table("files")
}

func TestColumnDefs(t *testing.T) {
	defs := columnDefs(filesTable(t))
	require.Len(t, defs, 4)

	assert.Equal(t, "id", defs[0].Name)
	assert.True(t, defs[0].Sequence)
	assert.Equal(t, 10, defs[0].Length)
	assert.Equal(t, "char", defs[1].Type)
	require.NotNil(t, defs[1].Default)
	assert.Equal(t, "unnamed", *defs[1].Default)
	assert.False(t, defs[2].NotNull)
}

func TestIndexName(t *testing.T) {
	tbl := filesTable(t)
	var unique *schema.Index
	for _, idx := range tbl.Indexes {
		if !idx.Primary {
			unique = idx
		}
	}
	require.NotNil(t, unique)
	assert.Equal(t, "files_filename_uix", indexName(tbl, unique))
}

func TestSelectQuery(t *testing.T) {
	assert.Equal(t,
		"SELECT id, filename, content, timecreated FROM files ORDER BY id",
		selectQuery(filesTable(t), "files"))
	assert.Equal(t,
		"SELECT id, filename, content, timecreated FROM app.files ORDER BY id",
		selectQuery(filesTable(t), "app.files"))
}

func TestInsertArgs(t *testing.T) {
	tbl := filesTable(t)

	cols, args, err := insertArgs(tbl, transfer.Record{
		"TIMECREATED": int64(1228125600),
		"id":          int64(7),
		"filename":    "a.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "filename", "timecreated"}, cols)
	assert.Equal(t, []any{int64(7), "a.txt", int64(1228125600)}, args)

	_, _, err = insertArgs(tbl, transfer.Record{"id": 1, "owner": "x", "author": "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "author, owner")
}

func TestNormalizeRecord(t *testing.T) {
	rec := normalizeRecord(filesTable(t), map[string]any{
		"ID":          int64(1),
		"FILENAME":    []byte("a.txt"),
		"CONTENT":     []byte{0, 1, 2},
		"TIMECREATED": nil,
	})
	assert.Equal(t, transfer.Record{
		"id":          int64(1),
		"filename":    "a.txt",
		"content":     []byte{0, 1, 2},
		"timecreated": nil,
	}, rec)
}
