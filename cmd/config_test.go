package cmd

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-transfer/internal/schema"
	"db-transfer/internal/transfer"
)

func setDatabases(t *testing.T, dbs ...map[string]any) {
	t.Helper()
	list := make([]any, len(dbs))
	for i, db := range dbs {
		list[i] = db
	}
	viper.Set("databases", list)
	t.Cleanup(func() { viper.Set("databases", nil) })
}

func TestGetActiveDBConfig(t *testing.T) {
	setDatabases(t,
		map[string]any{"name": "old", "driver": "mysql", "dsn": "u:p@/old"},
		map[string]any{"name": "new", "driver": "pgx", "dsn": "postgres://localhost/new", "schema": "public", "active": true},
	)

	cfg, err := GetActiveDBConfig()
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Name)
	assert.Equal(t, "pgx", cfg.Driver)
	assert.Equal(t, "public", cfg.Schema)

	cfg, err = GetDBConfig("old")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Driver)

	_, err = GetDBConfig("missing")
	assert.Error(t, err)
}

func TestLoadDBConfigs_Rejects(t *testing.T) {
	tests := []struct {
		name string
		dbs  []map[string]any
	}{
		{name: "unknown driver", dbs: []map[string]any{
			{"name": "a", "driver": "sqlite", "dsn": "file.db", "active": true},
		}},
		{name: "missing dsn", dbs: []map[string]any{
			{"name": "a", "driver": "mysql", "active": true},
		}},
		{name: "duplicate name", dbs: []map[string]any{
			{"name": "a", "driver": "mysql", "dsn": "x", "active": true},
			{"name": "a", "driver": "oracle", "dsn": "y"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setDatabases(t, tt.dbs...)
			_, err := loadDBConfigs()
			assert.Error(t, err)
		})
	}
}

func TestGetActiveDBConfig_ActiveCount(t *testing.T) {
	setDatabases(t,
		map[string]any{"name": "a", "driver": "mysql", "dsn": "x"},
	)
	_, err := GetActiveDBConfig()
	assert.ErrorContains(t, err, "no active database")

	setDatabases(t,
		map[string]any{"name": "a", "driver": "mysql", "dsn": "x", "active": true},
		map[string]any{"name": "b", "driver": "mssql", "dsn": "y", "active": true},
	)
	_, err = GetActiveDBConfig()
	assert.ErrorContains(t, err, "multiple active databases")
}

const cleanSchema = `<XMLDB PATH="test" VERSION="1"><TABLES>
<TABLE NAME="child"><FIELDS>
  <FIELD NAME="id" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="true"/>
  <FIELD NAME="parent" TYPE="int" LENGTH="10" NOTNULL="true"/>
</FIELDS><KEYS>
  <KEY NAME="primary" TYPE="primary" FIELDS="id"/>
  <KEY NAME="parent" TYPE="foreign" FIELDS="parent" REFTABLE="parent" REFFIELDS="id"/>
</KEYS></TABLE>
<TABLE NAME="parent"><FIELDS>
  <FIELD NAME="id" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="true"/>
</FIELDS><KEYS>
  <KEY NAME="primary" TYPE="primary" FIELDS="id"/>
</KEYS></TABLE>
<TABLE NAME="other"><FIELDS>
  <FIELD NAME="id" TYPE="int" LENGTH="10" NOTNULL="true"/>
</FIELDS></TABLE>
</TABLES></XMLDB>`

func TestSelectTables(t *testing.T) {
	doc, err := schema.Load(strings.NewReader(cleanSchema))
	require.NoError(t, err)

	names := func(ts []*schema.Table) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.Name)
		}
		return out
	}

	all, err := selectTables(doc, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := selectTables(doc, []string{"CHILD", "parent"})
	require.NoError(t, err)
	assert.Equal(t, []string{"parent", "child"}, names(some))

	_, err = selectTables(doc, []string{"nope"})
	var unknown *transfer.UnknownTableError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.Table)
}
