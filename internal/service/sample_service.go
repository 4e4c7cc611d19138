package service

import (
	"context"
	"fmt"
	"time"

	"qp-spc/internal/evaluator"
	"qp-spc/internal/metrics"
	"qp-spc/internal/models"
	"qp-spc/internal/notify"
	"qp-spc/internal/repository"

	"go.uber.org/zap"
)

// EventPublisher 样本事件发布（cache.StreamPublisher 实现）
type EventPublisher interface {
	PublishJSON(ctx context.Context, data any) (string, error)
}

// Notifier 报警发布（notify.MQTTNotifier 实现）
type Notifier interface {
	Notify(ctx context.Context, alert notify.Alert) error
}

// SaveSampleRequest 一次样本提交
// 计量型填写 RawInput，计数型填写 Defects
type SaveSampleRequest struct {
	PlanNumber string
	Key        models.CharacteristicKey
	RawInput   string
	Defects    *int
	Note       string
	ImageURL   string
	Timestamp  time.Time // 为空时取服务器时间
}

// SaveSampleResult 保存结果
type SaveSampleResult struct {
	Sample     models.SampleRecord  `json:"sample"`
	Record     models.DnaRecord     `json:"record"`
	Evaluation evaluator.Evaluation `json:"evaluation"`
	Severity   evaluator.Severity   `json:"severity"`
	// Warning 样本已保存但 DNA 记录未刷新时非空，此时 Record 为保存前的状态
	Warning string `json:"warning,omitempty"`
}

// SampleEvent 发布到事件流的样本摘要
type SampleEvent struct {
	SampleID  string             `json:"sample_id"`
	DnaID     string             `json:"dna_id"`
	CharType  models.CharType    `json:"char_type"`
	Mean      float64            `json:"mean"`
	StdDev    float64            `json:"stddev"`
	Severity  evaluator.Severity `json:"severity"`
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
}

// SampleService 样本录入流程：打开特性 → 解析 → 评估 → 保存 → 刷新 DNA
type SampleService struct {
	characteristics repository.CharacteristicRepository
	dnaStore        repository.DnaRecordStore
	samples         repository.SampleRepository
	events          EventPublisher
	notifier        Notifier
	metrics         *metrics.Metrics
	now             func() time.Time
	logger          *zap.Logger
}

// NewSampleService 创建样本服务（events 为 nil 时不发布事件流）
func NewSampleService(
	characteristics repository.CharacteristicRepository,
	dnaStore repository.DnaRecordStore,
	samples repository.SampleRepository,
	events EventPublisher,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SampleService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &SampleService{
		characteristics: characteristics,
		dnaStore:        dnaStore,
		samples:         samples,
		events:          events,
		notifier:        notifier,
		metrics:         m,
		now:             time.Now,
		logger:          logger,
	}
}

// OpenCharacteristic 解析身份并取得（或首次创建）DNA 记录
func (s *SampleService) OpenCharacteristic(ctx context.Context, planNumber string, key models.CharacteristicKey) (*models.DnaRecord, error) {
	if _, err := key.ID(); err != nil {
		return nil, err
	}

	seed, err := s.characteristics.GetCharacteristic(ctx, planNumber, key.Process, key.ItemNumber)
	if err != nil {
		return nil, err
	}

	return s.dnaStore.GetOrCreate(ctx, key, *seed)
}

// SaveSample 评估并保存一次样本
func (s *SampleService) SaveSample(ctx context.Context, req SaveSampleRequest) (*SaveSampleResult, error) {
	rec, err := s.OpenCharacteristic(ctx, req.PlanNumber, req.Key)
	if err != nil {
		s.countSaveError("open")
		return nil, err
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	sample := models.SampleRecord{
		DnaID:     rec.ID,
		Timestamp: ts,
		Note:      req.Note,
		ImageURL:  req.ImageURL,
	}

	var eval evaluator.Evaluation
	if rec.CharType.IsVariable() {
		values := evaluator.ParseSampleInput(req.RawInput)
		if err := evaluator.ValidateSampleSize(values, rec.RequiredSampleSize()); err != nil {
			s.countSaveError("sample_size")
			return nil, err
		}
		eval, err = evaluator.EvaluateVariable(values, rec.Limits())
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate sample: %w", err)
		}
		sample.Values = values
	} else {
		n := rec.RequiredSampleSize()
		if err := validateAttributeInput(req.Defects, n); err != nil {
			s.countSaveError("defects")
			return nil, err
		}
		eval, err = evaluator.EvaluateAttribute(*req.Defects, n)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate sample: %w", err)
		}
		defects := *req.Defects
		sample.Defects = &defects
		sample.SampleSize = &n
	}

	sample.Mean = eval.Mean
	sample.StdDev = eval.StdDev
	sample.Exception = eval.IsException()
	if err := sample.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sample: %w", err)
	}

	id, err := s.samples.AppendSample(ctx, &sample)
	if err != nil {
		s.countSaveError("storage")
		return nil, fmt.Errorf("failed to save sample: %w", err)
	}
	sample.ID = id

	patch := models.DnaPatch{
		models.FieldCheckStatus:        eval.Status(),
		models.FieldLastCheckTimestamp: ts,
	}
	if req.ImageURL != "" {
		patch[models.FieldImageURLLatestSample] = req.ImageURL
	}
	// 样本已落库，之后的失败只返回 Warning
	var warning string
	updated, err := s.dnaStore.Update(ctx, rec.ID, patch)
	if err != nil {
		s.countSaveError("record_update")
		s.logger.Warn("Sample saved but dna record not updated",
			zap.String("dna_id", rec.ID),
			zap.String("sample_id", id),
			zap.Error(err),
		)
		warning = "sample saved, record status not updated: " + err.Error()
		updated = rec
	}

	if s.metrics != nil {
		s.metrics.SamplesEvaluated.WithLabelValues(string(rec.CharType), string(eval.Severity())).Inc()
	}

	s.logger.Info("Sample saved",
		zap.String("dna_id", rec.ID),
		zap.String("sample_id", id),
		zap.String("severity", string(eval.Severity())),
		zap.Float64("mean", eval.Mean),
		zap.Float64("stddev", eval.StdDev),
	)

	s.publishEvent(ctx, sample, rec.CharType, eval)
	if eval.IsException() {
		s.publishAlert(ctx, sample, eval)
	}

	return &SaveSampleResult{
		Sample:     sample,
		Record:     *updated,
		Evaluation: eval,
		Severity:   eval.Severity(),
		Warning:    warning,
	}, nil
}

func validateAttributeInput(defects *int, sampleSize int) error {
	if defects == nil {
		return &models.InvalidFieldError{Field: "defects", Reason: "defect count is required for attribute characteristics"}
	}
	if sampleSize <= 0 {
		return &models.InvalidFieldError{Field: models.FieldSampleSize, Reason: "attribute characteristic has no sample size"}
	}
	if *defects < 0 || *defects > sampleSize {
		return &models.InvalidFieldError{
			Field:  "defects",
			Reason: fmt.Sprintf("must be between 0 and %d", sampleSize),
		}
	}
	return nil
}

// publishEvent 事件流失败只记录日志
func (s *SampleService) publishEvent(ctx context.Context, sample models.SampleRecord, charType models.CharType, eval evaluator.Evaluation) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishJSON(ctx, SampleEvent{
		SampleID:  sample.ID,
		DnaID:     sample.DnaID,
		CharType:  charType,
		Mean:      eval.Mean,
		StdDev:    eval.StdDev,
		Severity:  eval.Severity(),
		Status:    eval.Status(),
		Timestamp: sample.Timestamp,
	})
	if err != nil {
		s.countPublishFailure("stream")
		s.logger.Warn("Failed to publish sample event",
			zap.String("dna_id", sample.DnaID),
			zap.Error(err),
		)
	}
}

// publishAlert 报警失败只记录日志
func (s *SampleService) publishAlert(ctx context.Context, sample models.SampleRecord, eval evaluator.Evaluation) {
	exc := eval.Exception
	value := exc.Value
	err := s.notifier.Notify(ctx, notify.Alert{
		Type:      notify.AlertSampleException,
		DnaID:     sample.DnaID,
		Severity:  string(exc.Severity),
		Status:    exc.Status,
		Message:   exc.Message,
		Value:     &value,
		SampleID:  sample.ID,
		Timestamp: sample.Timestamp,
	})
	if err != nil {
		s.countPublishFailure("mqtt")
		s.logger.Warn("Failed to publish sample alert",
			zap.String("dna_id", sample.DnaID),
			zap.Error(err),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.AlertsPublished.WithLabelValues(notify.AlertSampleException).Inc()
	}
}

func (s *SampleService) countSaveError(reason string) {
	if s.metrics != nil {
		s.metrics.SaveErrors.WithLabelValues(reason).Inc()
	}
}

func (s *SampleService) countPublishFailure(sink string) {
	if s.metrics != nil {
		s.metrics.AlertFailures.WithLabelValues(sink).Inc()
	}
}
