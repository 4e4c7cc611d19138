package repository

import (
	"context"
	"fmt"
	"sync"

	"qp-spc/internal/models"

	"github.com/google/uuid"
)

var (
	_ SampleRepository         = (*MemorySampleRepository)(nil)
	_ CharacteristicRepository = (*MemoryCharacteristicRepository)(nil)
)

// MemorySampleRepository 内存样本仓库（按追加顺序保存）
type MemorySampleRepository struct {
	mu      sync.RWMutex
	samples []models.SampleRecord
}

func NewMemorySampleRepository() *MemorySampleRepository {
	return &MemorySampleRepository{}
}

func (r *MemorySampleRepository) AppendSample(_ context.Context, sample *models.SampleRecord) (string, error) {
	if sample == nil {
		return "", fmt.Errorf("sample is required")
	}
	if err := sample.Validate(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	stored := *sample
	stored.Values = append([]float64(nil), sample.Values...)
	r.samples = append(r.samples, stored)
	return sample.ID, nil
}

// ListSamples 最新追加的在前
func (r *MemorySampleRepository) ListSamples(_ context.Context, dnaID string, limit int) ([]models.SampleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.SampleRecord, 0)
	for i := len(r.samples) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r.samples[i].DnaID == dnaID {
			out = append(out, r.samples[i])
		}
	}
	return out, nil
}

func (r *MemorySampleRepository) AnnotateSample(_ context.Context, sampleID string, note, imageURL *string) (*models.SampleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.samples {
		if r.samples[i].ID != sampleID {
			continue
		}
		if note != nil {
			r.samples[i].Note = *note
		}
		if imageURL != nil {
			r.samples[i].ImageURL = *imageURL
		}
		out := r.samples[i]
		return &out, nil
	}
	return nil, &models.NotFoundError{Kind: "sample", ID: sampleID}
}

// MemoryCharacteristicRepository 内存控制计划特性
type MemoryCharacteristicRepository struct {
	mu    sync.RWMutex
	items map[string]models.Characteristic
}

func NewMemoryCharacteristicRepository() *MemoryCharacteristicRepository {
	return &MemoryCharacteristicRepository{items: map[string]models.Characteristic{}}
}

// Put 写入或替换一条设计特性
func (r *MemoryCharacteristicRepository) Put(c models.Characteristic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[characteristicID(c.PlanNumber, c.ProcessNumber, c.ItemNumber)] = c
}

func (r *MemoryCharacteristicRepository) GetCharacteristic(_ context.Context, planNumber, processNumber, itemNumber string) (*models.Characteristic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id := characteristicID(planNumber, processNumber, itemNumber)
	c, ok := r.items[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "characteristic", ID: id}
	}
	return &c, nil
}
