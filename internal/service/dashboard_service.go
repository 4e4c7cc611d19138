package service

import (
	"context"
	"time"

	"qp-spc/internal/evaluator"
	"qp-spc/internal/models"
	"qp-spc/internal/repository"

	"go.uber.org/zap"
)

const defaultSeriesLimit = 50

// DashboardService 仪表盘读侧：到期状态、图表序列、记录维护
type DashboardService struct {
	dnaStore    repository.DnaRecordStore
	samples     repository.SampleRepository
	seriesLimit int
	logger      *zap.Logger
}

// NewDashboardService 创建仪表盘服务
func NewDashboardService(
	dnaStore repository.DnaRecordStore,
	samples repository.SampleRepository,
	seriesLimit int,
	logger *zap.Logger,
) *DashboardService {
	if seriesLimit <= 0 {
		seriesLimit = defaultSeriesLimit
	}
	return &DashboardService{
		dnaStore:    dnaStore,
		samples:     samples,
		seriesLimit: seriesLimit,
		logger:      logger,
	}
}

// Record 读取 DNA 记录
func (s *DashboardService) Record(ctx context.Context, dnaID string) (*models.DnaRecord, error) {
	return s.dnaStore.Get(ctx, dnaID)
}

// Records 列出全部 DNA 记录
func (s *DashboardService) Records(ctx context.Context) ([]models.DnaRecord, error) {
	return s.dnaStore.List(ctx)
}

// DueState 计算记录的到期状态；没有检查记录或频率时返回 nil
func (s *DashboardService) DueState(ctx context.Context, dnaID string, now time.Time) (*evaluator.DueState, error) {
	rec, err := s.dnaStore.Get(ctx, dnaID)
	if err != nil {
		return nil, err
	}
	return evaluator.ComputeDueState(rec.LastCheckTimestamp, rec.Frequency, now), nil
}

// Series 最近 limit 个样本按时间升序，并按当前限值分级
func (s *DashboardService) Series(ctx context.Context, dnaID string, limit int) ([]evaluator.ClassifiedPoint, error) {
	rec, err := s.dnaStore.Get(ctx, dnaID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.seriesLimit
	}

	samples, err := s.samples.ListSamples(ctx, dnaID, limit)
	if err != nil {
		return nil, err
	}
	return evaluator.ClassifySeries(samples, *rec), nil
}

// UpdateRecord 局部更新（限值、频率、备注等）
func (s *DashboardService) UpdateRecord(ctx context.Context, dnaID string, patch models.DnaPatch) (*models.DnaRecord, error) {
	rec, err := s.dnaStore.Update(ctx, dnaID, patch)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	s.logger.Info("DNA record updated",
		zap.String("dna_id", dnaID),
		zap.Strings("fields", fields),
	)
	return rec, nil
}

// AnnotateSample 修改样本的备注或图片
func (s *DashboardService) AnnotateSample(ctx context.Context, sampleID string, note, imageURL *string) (*models.SampleRecord, error) {
	return s.samples.AnnotateSample(ctx, sampleID, note, imageURL)
}
