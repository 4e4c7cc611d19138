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

func setupMockSampleDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresSampleRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresSampleRepository(db, zap.NewNop())
	return db, mock, repo
}

var sampleRowColumns = []string{
	"sample_id", "dna_id", "sampled_at", "note", "image_url", "exception",
	"sample_values", "defects", "sample_size", "mean", "stddev",
}

func TestAppendSample_Variable(t *testing.T) {
	db, mock, repo := setupMockSampleDB(t)
	defer db.Close()

	ts := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO spc_samples`).
		WithArgs(sqlmock.AnyArg(), "dna-1", ts, nil, nil, false, "[10,10.2]", nil, nil, 10.1, 0.1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sample := &models.SampleRecord{
		DnaID:     "dna-1",
		Timestamp: ts,
		Values:    []float64{10, 10.2},
		Mean:      10.1,
		StdDev:    0.1,
	}
	id, err := repo.AppendSample(context.Background(), sample)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, sample.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendSample_Attribute(t *testing.T) {
	db, mock, repo := setupMockSampleDB(t)
	defer db.Close()

	ts := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO spc_samples`).
		WithArgs("s-1", "dna-1", ts, "scratch", nil, true, nil, 2, 50, 0.0, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.AppendSample(context.Background(), &models.SampleRecord{
		ID:         "s-1",
		DnaID:      "dna-1",
		Timestamp:  ts,
		Note:       "scratch",
		Exception:  true,
		Defects:    intPtr(2),
		SampleSize: intPtr(50),
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendSample_Invalid(t *testing.T) {
	db, mock, repo := setupMockSampleDB(t)
	defer db.Close()

	_, err := repo.AppendSample(context.Background(), &models.SampleRecord{DnaID: "dna-1"})
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSamples(t *testing.T) {
	db, mock, repo := setupMockSampleDB(t)
	defer db.Close()

	newer := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)
	rows := sqlmock.NewRows(sampleRowColumns).
		AddRow("s-2", "dna-1", newer, nil, nil, false, []byte(`[10.1,10.3]`), nil, nil, 10.2, 0.14).
		AddRow("s-1", "dna-1", older, "late", nil, true, nil, int64(3), int64(20), 0.0, 0.0)

	mock.ExpectQuery(`FROM spc_samples\s+WHERE dna_id = \$1\s+ORDER BY sampled_at DESC`).
		WithArgs("dna-1", 50).
		WillReturnRows(rows)

	samples, err := repo.ListSamples(context.Background(), "dna-1", 0)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, []float64{10.1, 10.3}, samples[0].Values)
	assert.False(t, samples[0].IsAttribute())
	assert.True(t, samples[1].IsAttribute())
	assert.Equal(t, 3, *samples[1].Defects)
	assert.Equal(t, "late", samples[1].Note)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnotateSample_NotFound(t *testing.T) {
	db, mock, repo := setupMockSampleDB(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE spc_samples`).
		WithArgs("note", nil, "missing").
		WillReturnError(sql.ErrNoRows)

	note := "note"
	_, err := repo.AnnotateSample(context.Background(), "missing", &note, nil)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}
