package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"qp-spc/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDnaDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresDnaStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewPostgresDnaStore(db, zap.NewNop())
	return db, mock, store
}

var dnaRowColumns = []string{
	"dna_id", "workstation", "order_number", "process_number", "item_number",
	"char_type", "lsl", "usl", "lcl", "cl", "ucl", "s_usl",
	"sample_size", "frequency", "check_status", "last_check_at",
	"memo", "image_url", "image_url_latest_sample", "created_at", "updated_at",
}

func dnaRows(ucl float64, checkStatus any, lastCheck any) *sqlmock.Rows {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(dnaRowColumns).AddRow(
		"AP01_PO-4711_10_3", "AP01", "PO-4711", "10", "3",
		"P", 9.0, 10.0, 9.5, nil, ucl, nil,
		int64(5), int64(60), checkStatus, lastCheck,
		nil, nil, nil, now, now,
	)
}

func TestPostgresDnaStore_GetOrCreate(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO spc_dna`).
		WithArgs(
			"AP01_PO-4711_10_3", "AP01", "PO-4711", "10", "3", "P",
			9.0, 10.0, 9.5, nil, 10.5, nil,
			5, 60,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT`).
		WithArgs("AP01_PO-4711_10_3").
		WillReturnRows(dnaRows(10.5, nil, nil))

	rec, err := store.GetOrCreate(context.Background(), testKey(), testSeed(10))
	require.NoError(t, err)
	assert.Equal(t, "AP01_PO-4711_10_3", rec.ID)
	assert.Equal(t, models.CharTypeP, rec.CharType)
	assert.Equal(t, 10.5, *rec.UCL)
	assert.Nil(t, rec.CL)
	assert.Equal(t, 5, *rec.SampleSize)
	assert.Nil(t, rec.LastCheckTimestamp)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDnaStore_GetOrCreate_ExistingRecordWins(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	// 记录已存在：插入不影响任何行，返回已存储的值
	mock.ExpectExec(`INSERT INTO spc_dna`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT`).
		WithArgs("AP01_PO-4711_10_3").
		WillReturnRows(dnaRows(10.2, "OK", nil))

	rec, err := store.GetOrCreate(context.Background(), testKey(), testSeed(99))
	require.NoError(t, err)
	assert.Equal(t, 10.0, *rec.USL)
	assert.Equal(t, 10.2, *rec.UCL)
	assert.Equal(t, "OK", *rec.CheckStatus)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDnaStore_GetOrCreate_InvalidKey(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	_, err := store.GetOrCreate(context.Background(), models.CharacteristicKey{Workstation: "AP01"}, testSeed(10))
	assert.True(t, errors.Is(err, models.ErrInvalidKey))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDnaStore_Get_NotFound(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDnaStore_Update(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	checked := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// 列顺序按白名单顺序：UCL、checkStatus、lastCheckTimestamp、updated_at、dna_id
	mock.ExpectQuery(`UPDATE spc_dna\s+SET ucl = \$1, check_status = \$2, last_check_at = \$3, updated_at = \$4\s+WHERE dna_id = \$5`).
		WithArgs(10.2, "OK", checked, sqlmock.AnyArg(), "AP01_PO-4711_10_3").
		WillReturnRows(dnaRows(10.2, "OK", checked))

	rec, err := store.Update(context.Background(), "AP01_PO-4711_10_3", models.DnaPatch{
		"lastCheckTimestamp": checked.Format(time.RFC3339),
		"checkStatus":        "OK",
		"UCL":                10.2,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.2, *rec.UCL)
	assert.Equal(t, "OK", *rec.CheckStatus)
	require.NotNil(t, rec.LastCheckTimestamp)
	assert.True(t, checked.Equal(*rec.LastCheckTimestamp))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDnaStore_Update_ClearField(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE spc_dna\s+SET memo = \$1, updated_at = \$2`).
		WithArgs(nil, sqlmock.AnyArg(), "AP01_PO-4711_10_3").
		WillReturnRows(dnaRows(10.5, nil, nil))

	rec, err := store.Update(context.Background(), "AP01_PO-4711_10_3", models.DnaPatch{"Memo": nil})
	require.NoError(t, err)
	assert.Nil(t, rec.Memo)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDnaStore_Update_InvalidField(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	_, err := store.Update(context.Background(), "AP01_PO-4711_10_3", models.DnaPatch{"workstation": "AP02"})
	assert.True(t, errors.Is(err, models.ErrInvalidField))

	// 校验失败时不访问数据库
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDnaStore_Update_NotFound(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE spc_dna`).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Update(context.Background(), "missing", models.DnaPatch{"Memo": "x"})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDnaStore_List(t *testing.T) {
	db, mock, store := setupMockDnaDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM spc_dna\s+ORDER BY dna_id`).
		WillReturnRows(dnaRows(10.5, nil, nil))

	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "AP01_PO-4711_10_3", records[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}
