package repository

import (
	"context"

	"qp-spc/internal/models"
)

// DnaRecordStore DNA 监控记录的存储契约
//
// GetOrCreate 必须是原子的条件创建：并发的首次访问只能产生一条记录，
// 种子只在创建时使用，之后的调用忽略种子，不会覆盖操作员修改过的限值。
// Update 只接受白名单字段（models.DnaPatch），按字段合并，后写覆盖先写（没有版本号）。
// 记录不会被这一层删除。
type DnaRecordStore interface {
	GetOrCreate(ctx context.Context, key models.CharacteristicKey, seed models.Characteristic) (*models.DnaRecord, error)
	Get(ctx context.Context, id string) (*models.DnaRecord, error)
	Update(ctx context.Context, id string, patch models.DnaPatch) (*models.DnaRecord, error)
	List(ctx context.Context) ([]models.DnaRecord, error)
}

// CharacteristicRepository 控制计划特性查询（只读）
type CharacteristicRepository interface {
	// GetCharacteristic 不存在时返回 *models.NotFoundError
	GetCharacteristic(ctx context.Context, planNumber, processNumber, itemNumber string) (*models.Characteristic, error)
}

// SampleRepository 样本记录的追加与查询
type SampleRepository interface {
	// AppendSample 返回存储后的样本 id
	AppendSample(ctx context.Context, sample *models.SampleRecord) (string, error)
	// ListSamples 按存储顺序（最新在前）返回最多 limit 条
	ListSamples(ctx context.Context, dnaID string, limit int) ([]models.SampleRecord, error)
	// AnnotateSample 样本创建后只允许修改备注和图片
	AnnotateSample(ctx context.Context, sampleID string, note, imageURL *string) (*models.SampleRecord, error)
}

func characteristicID(planNumber, processNumber, itemNumber string) string {
	return planNumber + "/" + processNumber + "/" + itemNumber
}
