package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"qp-spc/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var characteristicColumns = []string{
	"plan_number", "process_number", "item_number", "description", "char_type",
	"nominal", "lsl", "usl", "lcl", "cl", "ucl", "s_usl",
	"units", "sample_size", "frequency", "ctq",
}

func TestGetCharacteristic_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCharacteristicRepository(db, zap.NewNop())

	rows := sqlmock.NewRows(characteristicColumns).AddRow(
		"CP-100", "10", "3", "Bore diameter", "P",
		10.0, 9.0, 11.0, 9.5, 10.0, 10.5, nil,
		"mm", int64(5), int64(60), true,
	)
	mock.ExpectQuery(`FROM control_plan_characteristics`).
		WithArgs("CP-100", "10", "3").
		WillReturnRows(rows)

	c, err := repo.GetCharacteristic(context.Background(), "CP-100", "10", "3")
	require.NoError(t, err)
	assert.Equal(t, models.CharTypeP, c.CharType)
	assert.Equal(t, "Bore diameter", c.Description)
	assert.Equal(t, 11.0, *c.USL)
	assert.Nil(t, c.SUSL)
	assert.Equal(t, 5, *c.SampleSize)
	assert.True(t, c.CTQ)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCharacteristic_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCharacteristicRepository(db, zap.NewNop())

	mock.ExpectQuery(`FROM control_plan_characteristics`).
		WithArgs("CP-100", "10", "9").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetCharacteristic(context.Background(), "CP-100", "10", "9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Contains(t, err.Error(), "CP-100/10/9")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCharacteristic_UnknownCharType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCharacteristicRepository(db, zap.NewNop())

	rows := sqlmock.NewRows(characteristicColumns).AddRow(
		"CP-100", "10", "3", nil, "X",
		nil, nil, nil, nil, nil, nil, nil,
		nil, nil, nil, false,
	)
	mock.ExpectQuery(`FROM control_plan_characteristics`).
		WillReturnRows(rows)

	_, err = repo.GetCharacteristic(context.Background(), "CP-100", "10", "3")
	assert.Error(t, err)
}
