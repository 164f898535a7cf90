package schema_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-transfer/internal/dialect"
	"db-transfer/internal/schema"
)

func TestAnalyze_WrapsDriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`FROM information_schema\.TABLES`).WithArgs("public").WillReturnError(boom)

	_, err = schema.Analyze(context.Background(), db, &dialect.PostgresDialect{}, "public")
	require.Error(t, err)
	assert.Equal(t, boom, errors.Cause(err))
	assert.Contains(t, err.Error(), "failed to query tables")
	assert.NoError(t, mock.ExpectationsWereMet())
}
