package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"qp-spc/internal/models"

	"go.uber.org/zap"
)

var _ DnaRecordStore = (*MemoryDnaStore)(nil)

// MemoryDnaStore 内存 DNA 存储（无数据库模式、测试）
// 检查与创建在同一把锁内完成，满足原子条件创建
type MemoryDnaStore struct {
	mu      sync.RWMutex
	records map[string]models.DnaRecord
	now     func() time.Time
	logger  *zap.Logger
}

// NewMemoryDnaStore 创建内存 DNA 存储
func NewMemoryDnaStore(logger *zap.Logger) *MemoryDnaStore {
	return &MemoryDnaStore{
		records: map[string]models.DnaRecord{},
		now:     time.Now,
		logger:  logger,
	}
}

func (s *MemoryDnaStore) GetOrCreate(_ context.Context, key models.CharacteristicKey, seed models.Characteristic) (*models.DnaRecord, error) {
	id, err := key.ID()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[id]; ok {
		out := rec.Clone()
		return &out, nil
	}

	rec := models.NewDnaRecord(id, key, seed, s.now())
	s.records[id] = rec
	s.logger.Info("DNA record created",
		zap.String("dna_id", id),
		zap.String("char_type", string(rec.CharType)),
	)

	out := rec.Clone()
	return &out, nil
}

func (s *MemoryDnaStore) Get(_ context.Context, id string) (*models.DnaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "dna record", ID: id}
	}
	out := rec.Clone()
	return &out, nil
}

func (s *MemoryDnaStore) Update(_ context.Context, id string, patch models.DnaPatch) (*models.DnaRecord, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "dna record", ID: id}
	}
	updated := rec.Clone()
	if err := patch.ApplyTo(&updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now()
	s.records[id] = updated

	out := updated.Clone()
	return &out, nil
}

func (s *MemoryDnaStore) List(_ context.Context) ([]models.DnaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DnaRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}
