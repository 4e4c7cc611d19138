package repository

import (
	"context"
	"database/sql"
	"fmt"

	"qp-spc/internal/models"

	"go.uber.org/zap"
)

var _ CharacteristicRepository = (*PostgresCharacteristicRepository)(nil)

// PostgresCharacteristicRepository 控制计划特性仓库
type PostgresCharacteristicRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresCharacteristicRepository 创建特性仓库
func NewPostgresCharacteristicRepository(db *sql.DB, logger *zap.Logger) *PostgresCharacteristicRepository {
	return &PostgresCharacteristicRepository{
		db:     db,
		logger: logger,
	}
}

// GetCharacteristic 根据控制计划号、工序号、特性编号读取设计特性
func (r *PostgresCharacteristicRepository) GetCharacteristic(ctx context.Context, planNumber, processNumber, itemNumber string) (*models.Characteristic, error) {
	query := `
		SELECT
			plan_number,
			process_number,
			item_number,
			description,
			char_type,
			nominal,
			lsl,
			usl,
			lcl,
			cl,
			ucl,
			s_usl,
			units,
			sample_size,
			frequency,
			ctq
		FROM control_plan_characteristics
		WHERE plan_number = $1
		  AND process_number = $2
		  AND item_number = $3
	`

	var c models.Characteristic
	var charType string
	var description, units sql.NullString
	var nominal, lsl, usl, lcl, cl, ucl, sUSL sql.NullFloat64
	var sampleSize, frequency sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, planNumber, processNumber, itemNumber).Scan(
		&c.PlanNumber,
		&c.ProcessNumber,
		&c.ItemNumber,
		&description,
		&charType,
		&nominal,
		&lsl,
		&usl,
		&lcl,
		&cl,
		&ucl,
		&sUSL,
		&units,
		&sampleSize,
		&frequency,
		&c.CTQ,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{
				Kind: "characteristic",
				ID:   characteristicID(planNumber, processNumber, itemNumber),
			}
		}
		return nil, fmt.Errorf("failed to query characteristic: %w", err)
	}

	c.CharType = models.CharType(charType)
	if !c.CharType.Valid() {
		return nil, fmt.Errorf("characteristic %s has unknown char_type %q",
			characteristicID(planNumber, processNumber, itemNumber), charType)
	}
	c.Description = description.String
	c.Units = units.String
	c.Nominal = nullFloat(nominal)
	c.LSL = nullFloat(lsl)
	c.USL = nullFloat(usl)
	c.LCL = nullFloat(lcl)
	c.CL = nullFloat(cl)
	c.UCL = nullFloat(ucl)
	c.SUSL = nullFloat(sUSL)
	c.SampleSize = nullInt(sampleSize)
	c.Frequency = nullInt(frequency)

	return &c, nil
}
