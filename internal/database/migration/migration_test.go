package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnsureMigrated(t *testing.T) {
	ctx := context.Background()

	t.Run("schema present", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT to_regclass").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		assert.NoError(t, EnsureMigrated(ctx, db, zap.NewNop()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("runs every step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT to_regclass").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		for range steps {
			mock.ExpectExec(".+").WillReturnResult(sqlmock.NewResult(0, 0))
		}

		assert.NoError(t, EnsureMigrated(ctx, db, zap.NewNop()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("step failure stops", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT to_regclass").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE EXTENSION").WillReturnError(errors.New("permission denied"))

		err = EnsureMigrated(ctx, db, zap.NewNop())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "create_extension_uuid_ossp")
	})
}
