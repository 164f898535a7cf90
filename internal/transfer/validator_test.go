package transfer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-transfer/internal/schema"
	"db-transfer/internal/transfer"
)

func TestValidateDatabase(t *testing.T) {
	ctx := context.Background()
	doc := loadDoc(t)
	v := transfer.NewValidator(nil)

	db := installedDB(t, doc)
	require.NoError(t, v.ValidateDatabase(ctx, db, doc))

	db.drop("config")
	db.alter("course_categories", func(tbl *schema.Table) {
		tbl.Fields[1].NotNull = false
	})
	err := v.ValidateDatabase(ctx, db, doc)

	var sErr *transfer.SchemaMismatchError
	require.ErrorAs(t, err, &sErr)
	kinds := make(map[schema.DifferenceKind]string)
	for _, d := range sErr.Differences {
		kinds[d.Kind] = d.Table
	}
	assert.Equal(t, map[schema.DifferenceKind]string{
		schema.MissingTable:        "config",
		schema.NullabilityMismatch: "course_categories",
	}, kinds)
	assert.Contains(t, err.Error(), "schema mismatch")
}

func TestValidateTableHash(t *testing.T) {
	doc := loadDoc(t)
	v := transfer.NewValidator(nil)
	course := doc.Table("course")

	assert.True(t, v.ValidateTableHash(course, course.Hash()))
	assert.False(t, v.ValidateTableHash(course, doc.Table("config").Hash()))
	assert.False(t, v.ValidateTableHash(nil, ""))
}
