package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"qp-spc/internal/models"

	"go.uber.org/zap"
)

var _ DnaRecordStore = (*PostgresDnaStore)(nil)

// PostgresDnaStore DNA 记录的 PostgreSQL 实现
// 条件创建依赖 dna_id 主键 + ON CONFLICT DO NOTHING
type PostgresDnaStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewPostgresDnaStore 创建 DNA 存储
func NewPostgresDnaStore(db *sql.DB, logger *zap.Logger) *PostgresDnaStore {
	return &PostgresDnaStore{
		db:     db,
		now:    time.Now,
		logger: logger,
	}
}

const dnaColumns = `
	dna_id,
	workstation,
	order_number,
	process_number,
	item_number,
	char_type,
	lsl,
	usl,
	lcl,
	cl,
	ucl,
	s_usl,
	sample_size,
	frequency,
	check_status,
	last_check_at,
	memo,
	image_url,
	image_url_latest_sample,
	created_at,
	updated_at`

// dnaFieldColumns 白名单字段 → 列名
var dnaFieldColumns = map[string]string{
	models.FieldLSL:                  "lsl",
	models.FieldLCL:                  "lcl",
	models.FieldCL:                   "cl",
	models.FieldUCL:                  "ucl",
	models.FieldUSL:                  "usl",
	models.FieldSUSL:                 "s_usl",
	models.FieldSampleSize:           "sample_size",
	models.FieldFrequency:            "frequency",
	models.FieldCheckStatus:          "check_status",
	models.FieldLastCheckTimestamp:   "last_check_at",
	models.FieldMemo:                 "memo",
	models.FieldImageURL:             "image_url",
	models.FieldImageURLLatestSample: "image_url_latest_sample",
}

// GetOrCreate 原子条件创建后读取
func (s *PostgresDnaStore) GetOrCreate(ctx context.Context, key models.CharacteristicKey, seed models.Characteristic) (*models.DnaRecord, error) {
	id, err := key.ID()
	if err != nil {
		return nil, err
	}

	rec := models.NewDnaRecord(id, key, seed, s.now())
	query := `
		INSERT INTO spc_dna (
			dna_id,
			workstation,
			order_number,
			process_number,
			item_number,
			char_type,
			lsl,
			usl,
			lcl,
			cl,
			ucl,
			s_usl,
			sample_size,
			frequency,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (dna_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Workstation,
		rec.Order,
		rec.Process,
		rec.ItemNumber,
		string(rec.CharType),
		rec.LSL,
		rec.USL,
		rec.LCL,
		rec.CL,
		rec.UCL,
		rec.SUSL,
		rec.SampleSize,
		rec.Frequency,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dna record: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("DNA record created",
			zap.String("dna_id", id),
			zap.String("char_type", string(rec.CharType)),
		)
	}

	return s.Get(ctx, id)
}

// Get 根据 dna_id 读取
func (s *PostgresDnaStore) Get(ctx context.Context, id string) (*models.DnaRecord, error) {
	query := `SELECT ` + dnaColumns + `
		FROM spc_dna
		WHERE dna_id = $1
	`
	rec, err := scanDnaRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{Kind: "dna record", ID: id}
		}
		return nil, fmt.Errorf("failed to get dna record: %w", err)
	}
	return rec, nil
}

// Update 只更新补丁中出现的白名单列
func (s *PostgresDnaStore) Update(ctx context.Context, id string, patch models.DnaPatch) (*models.DnaRecord, error) {
	values, err := patch.Normalize()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return s.Get(ctx, id)
	}

	sets := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+2)
	for _, field := range models.DnaPatchFields {
		v, ok := values[field]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", dnaFieldColumns[field], len(args)))
	}
	args = append(args, s.now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE spc_dna
		SET %s
		WHERE dna_id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), len(args), dnaColumns)

	rec, err := scanDnaRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{Kind: "dna record", ID: id}
		}
		return nil, fmt.Errorf("failed to update dna record: %w", err)
	}

	s.logger.Debug("DNA record updated",
		zap.String("dna_id", id),
		zap.Int("field_count", len(values)),
	)
	return rec, nil
}

// List 返回全部 DNA 记录（按 dna_id 排序）
func (s *PostgresDnaStore) List(ctx context.Context) ([]models.DnaRecord, error) {
	query := `SELECT ` + dnaColumns + `
		FROM spc_dna
		ORDER BY dna_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dna records: %w", err)
	}
	defer rows.Close()

	var records []models.DnaRecord
	for rows.Next() {
		rec, err := scanDnaRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dna record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dna records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDnaRecord(row rowScanner) (*models.DnaRecord, error) {
	var rec models.DnaRecord
	var charType string
	var lsl, usl, lcl, cl, ucl, sUSL sql.NullFloat64
	var sampleSize, frequency sql.NullInt64
	var checkStatus, memo, imageURL, imageURLLatest sql.NullString
	var lastCheck sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.Workstation,
		&rec.Order,
		&rec.Process,
		&rec.ItemNumber,
		&charType,
		&lsl,
		&usl,
		&lcl,
		&cl,
		&ucl,
		&sUSL,
		&sampleSize,
		&frequency,
		&checkStatus,
		&lastCheck,
		&memo,
		&imageURL,
		&imageURLLatest,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.CharType = models.CharType(charType)
	rec.LSL = nullFloat(lsl)
	rec.USL = nullFloat(usl)
	rec.LCL = nullFloat(lcl)
	rec.CL = nullFloat(cl)
	rec.UCL = nullFloat(ucl)
	rec.SUSL = nullFloat(sUSL)
	rec.SampleSize = nullInt(sampleSize)
	rec.Frequency = nullInt(frequency)
	rec.CheckStatus = nullString(checkStatus)
	rec.Memo = nullString(memo)
	rec.ImageURL = nullString(imageURL)
	rec.ImageURLLatestSample = nullString(imageURLLatest)
	if lastCheck.Valid {
		t := lastCheck.Time
		rec.LastCheckTimestamp = &t
	}
	return &rec, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
