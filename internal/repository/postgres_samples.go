package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"qp-spc/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ SampleRepository = (*PostgresSampleRepository)(nil)

// PostgresSampleRepository 样本记录仓库
type PostgresSampleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSampleRepository 创建样本仓库
func NewPostgresSampleRepository(db *sql.DB, logger *zap.Logger) *PostgresSampleRepository {
	return &PostgresSampleRepository{
		db:     db,
		logger: logger,
	}
}

const sampleColumns = `
	sample_id,
	dna_id,
	sampled_at,
	note,
	image_url,
	exception,
	sample_values,
	defects,
	sample_size,
	mean,
	stddev`

// AppendSample 写入样本（id 为空时生成 UUID）
func (r *PostgresSampleRepository) AppendSample(ctx context.Context, sample *models.SampleRecord) (string, error) {
	if sample == nil {
		return "", fmt.Errorf("sample is required")
	}
	if err := sample.Validate(); err != nil {
		return "", err
	}
	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}

	// 计数型样本不写 sample_values
	var values any
	if len(sample.Values) > 0 {
		b, err := json.Marshal(sample.Values)
		if err != nil {
			return "", fmt.Errorf("failed to marshal sample values: %w", err)
		}
		values = string(b)
	}

	query := `
		INSERT INTO spc_samples (` + sampleColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		sample.ID,
		sample.DnaID,
		sample.Timestamp,
		nullIfEmpty(sample.Note),
		nullIfEmpty(sample.ImageURL),
		sample.Exception,
		values,
		sample.Defects,
		sample.SampleSize,
		sample.Mean,
		sample.StdDev,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert sample: %w", err)
	}

	return sample.ID, nil
}

// ListSamples 最新的在前
func (r *PostgresSampleRepository) ListSamples(ctx context.Context, dnaID string, limit int) ([]models.SampleRecord, error) {
	if dnaID == "" {
		return nil, fmt.Errorf("dna_id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + sampleColumns + `
		FROM spc_samples
		WHERE dna_id = $1
		ORDER BY sampled_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, dnaID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]models.SampleRecord, 0)
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}
	return samples, nil
}

// AnnotateSample 只修改备注和图片，其余字段不可变
func (r *PostgresSampleRepository) AnnotateSample(ctx context.Context, sampleID string, note, imageURL *string) (*models.SampleRecord, error) {
	query := `
		UPDATE spc_samples
		SET note = COALESCE($1, note),
		    image_url = COALESCE($2, image_url)
		WHERE sample_id = $3
		RETURNING ` + sampleColumns

	s, err := scanSample(r.db.QueryRowContext(ctx, query, note, imageURL, sampleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{Kind: "sample", ID: sampleID}
		}
		return nil, err
	}
	return s, nil
}

func scanSample(row rowScanner) (*models.SampleRecord, error) {
	var s models.SampleRecord
	var note, imageURL sql.NullString
	var values []byte
	var defects, sampleSize sql.NullInt64

	err := row.Scan(
		&s.ID,
		&s.DnaID,
		&s.Timestamp,
		&note,
		&imageURL,
		&s.Exception,
		&values,
		&defects,
		&sampleSize,
		&s.Mean,
		&s.StdDev,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sample: %w", err)
	}

	s.Note = note.String
	s.ImageURL = imageURL.String
	s.Defects = nullInt(defects)
	s.SampleSize = nullInt(sampleSize)
	if len(values) > 0 {
		if err := json.Unmarshal(values, &s.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sample values: %w", err)
		}
	}
	return &s, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
