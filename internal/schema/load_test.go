package schema_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-transfer/internal/schema"
)

func TestLoad(t *testing.T) {
	doc, err := schema.Load(strings.NewReader(coreSchema))
	require.NoError(t, err)

	assert.Equal(t, "2008120100", doc.Version)
	assert.Equal(t, []string{"course", "course_categories", "config"}, doc.TableNames())

	course := doc.Table("COURSE")
	require.NotNil(t, course)
	assert.Equal(t, []string{"id"}, course.PrimaryKey())
	assert.Equal(t, "id", course.SequenceField().Name)
	assert.Equal(t, []string{"course_categories"}, course.Dependencies)

	cost := course.Field("cost")
	require.NotNil(t, cost)
	assert.Equal(t, schema.TypeNumber, cost.Type)
	assert.Equal(t, 10, cost.Length)
	assert.Equal(t, 2, cost.Decimals)
	assert.False(t, cost.NotNull)
	assert.Nil(t, cost.Default)

	category := course.Field("category")
	require.NotNil(t, category.Default)
	assert.Equal(t, "0", *category.Default)

	cats := doc.Table("course_categories")
	assert.Empty(t, cats.Dependencies, "self references do not order tables")
	require.Len(t, cats.Indexes, 2)
	assert.Equal(t, []string{"name", "parent"}, cats.Indexes[1].Fields)
	assert.True(t, cats.Indexes[1].Unique)

	assert.Nil(t, doc.Table("missing"))
	assert.Nil(t, doc.Table("config").SequenceField())
}

func TestLoad_OrderedPutsParentsFirst(t *testing.T) {
	doc, err := schema.Load(strings.NewReader(coreSchema))
	require.NoError(t, err)

	var names []string
	for _, tbl := range doc.Ordered() {
		names = append(names, tbl.Name)
	}
	assert.Less(t, indexOf(names, "course_categories"), indexOf(names, "course"))
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{name: "not xml", xml: "this is not xml"},
		{name: "wrong root", xml: `<SCHEMA><TABLES/></SCHEMA>`},
		{name: "unknown field type", xml: wrap(`<TABLE NAME="t"><FIELDS><FIELD NAME="id" TYPE="uuid"/></FIELDS></TABLE>`)},
		{name: "missing field name", xml: wrap(`<TABLE NAME="t"><FIELDS><FIELD TYPE="int"/></FIELDS></TABLE>`)},
		{name: "duplicate table", xml: wrap(
			`<TABLE NAME="t"><FIELDS><FIELD NAME="id" TYPE="int" LENGTH="10"/></FIELDS></TABLE>` +
				`<TABLE NAME="T"><FIELDS><FIELD NAME="id" TYPE="int" LENGTH="10"/></FIELDS></TABLE>`)},
		{name: "duplicate field", xml: wrap(
			`<TABLE NAME="t"><FIELDS><FIELD NAME="id" TYPE="int" LENGTH="10"/><FIELD NAME="id" TYPE="int" LENGTH="10"/></FIELDS></TABLE>`)},
		{name: "char without length", xml: wrap(`<TABLE NAME="t"><FIELDS><FIELD NAME="c" TYPE="char"/></FIELDS></TABLE>`)},
		{name: "bad length", xml: wrap(`<TABLE NAME="t"><FIELDS><FIELD NAME="c" TYPE="char" LENGTH="ten"/></FIELDS></TABLE>`)},
		{name: "sequence on char", xml: wrap(`<TABLE NAME="t"><FIELDS><FIELD NAME="c" TYPE="char" LENGTH="5" SEQUENCE="true"/></FIELDS></TABLE>`)},
		{name: "two sequences", xml: wrap(
			`<TABLE NAME="t"><FIELDS><FIELD NAME="a" TYPE="int" LENGTH="10" SEQUENCE="true"/><FIELD NAME="b" TYPE="int" LENGTH="10" SEQUENCE="true"/></FIELDS></TABLE>`)},
		{name: "key on unknown field", xml: wrap(
			`<TABLE NAME="t"><FIELDS><FIELD NAME="id" TYPE="int" LENGTH="10"/></FIELDS><KEYS><KEY NAME="primary" TYPE="primary" FIELDS="nope"/></KEYS></TABLE>`)},
		{name: "foreign key without reftable", xml: wrap(
			`<TABLE NAME="t"><FIELDS><FIELD NAME="id" TYPE="int" LENGTH="10"/></FIELDS><KEYS><KEY NAME="fk" TYPE="foreign" FIELDS="id"/></KEYS></TABLE>`)},
		{name: "number decimals exceed length", xml: wrap(
			`<TABLE NAME="t"><FIELDS><FIELD NAME="n" TYPE="number" LENGTH="2" DECIMALS="5"/></FIELDS></TABLE>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := schema.Load(strings.NewReader(tt.xml))
			assert.Nil(t, doc)

			var me *schema.MalformedSchemaError
			require.True(t, errors.As(err, &me), "want MalformedSchemaError, got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "install.xml")
	bad := filepath.Join(dir, "broken.xml")
	require.NoError(t, os.WriteFile(good, []byte(coreSchema), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("<XMLDB>"), 0o600))

	doc, err := schema.LoadFile(good)
	require.NoError(t, err)
	assert.Len(t, doc.Tables, 3)

	_, err = schema.LoadFile(bad)
	var me *schema.MalformedSchemaError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, bad, me.Source)
	assert.Contains(t, err.Error(), bad)

	_, err = schema.LoadFile(filepath.Join(dir, "absent.xml"))
	require.Error(t, err)
	assert.False(t, errors.As(err, &me))
}

func wrap(tables string) string {
	return `<XMLDB PATH="test" VERSION="1"><TABLES>` + tables + `</TABLES></XMLDB>`
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
