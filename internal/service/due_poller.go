package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qp-spc/internal/evaluator"
	"qp-spc/internal/metrics"
	"qp-spc/internal/notify"
	"qp-spc/internal/repository"

	"go.uber.org/zap"
)

// DuePoller 周期性重新计算所有记录的到期状态
// 记录由未超期变为超期时发布一次报警
type DuePoller struct {
	dnaStore repository.DnaRecordStore
	notifier Notifier
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	overdue map[string]bool
}

// NewDuePoller 创建到期轮询器
func NewDuePoller(
	dnaStore repository.DnaRecordStore,
	notifier Notifier,
	m *metrics.Metrics,
	interval time.Duration,
	logger *zap.Logger,
) *DuePoller {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &DuePoller{
		dnaStore: dnaStore,
		notifier: notifier,
		metrics:  m,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		overdue:  map[string]bool{},
	}
}

// DueSummary 一次轮询的结果
type DueSummary struct {
	Tracked int
	Overdue int
	Warning int
	Alerted int
}

// Start 启动轮询，ctx 取消后返回
func (p *DuePoller) Start(ctx context.Context) error {
	p.logger.Info("Due poller started",
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// 立即执行一次
	if _, err := p.Poll(ctx); err != nil {
		p.logger.Error("Failed to poll due states on startup", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Due poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Error("Failed to poll due states", zap.Error(err))
			}
		}
	}
}

// Poll 执行一次到期检查
func (p *DuePoller) Poll(ctx context.Context) (DueSummary, error) {
	records, err := p.dnaStore.List(ctx)
	if err != nil {
		return DueSummary{}, fmt.Errorf("failed to list dna records: %w", err)
	}

	now := p.now()
	var summary DueSummary

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.ID] = true

		state := evaluator.ComputeDueState(rec.LastCheckTimestamp, rec.Frequency, now)
		if state == nil {
			delete(p.overdue, rec.ID)
			continue
		}
		summary.Tracked++

		if state.Warning {
			summary.Warning++
		}
		if !state.Overdue {
			delete(p.overdue, rec.ID)
			continue
		}
		summary.Overdue++
		if p.overdue[rec.ID] {
			continue
		}

		err := p.notifier.Notify(ctx, notify.Alert{
			Type:      notify.AlertOverdue,
			DnaID:     rec.ID,
			Severity:  string(evaluator.SeverityWarning),
			Status:    "Overdue",
			Message:   fmt.Sprintf("check overdue since %s", state.DueAt.Format(time.RFC3339)),
			Timestamp: now,
		})
		if err != nil {
			// 下一轮重试
			p.logger.Warn("Failed to publish overdue alert",
				zap.String("dna_id", rec.ID),
				zap.Error(err),
			)
			if p.metrics != nil {
				p.metrics.AlertFailures.WithLabelValues("mqtt").Inc()
			}
			continue
		}
		p.overdue[rec.ID] = true
		summary.Alerted++
		if p.metrics != nil {
			p.metrics.AlertsPublished.WithLabelValues(notify.AlertOverdue).Inc()
		}
	}

	for id := range p.overdue {
		if !seen[id] {
			delete(p.overdue, id)
		}
	}

	if p.metrics != nil {
		p.metrics.RecordsOverdue.Set(float64(summary.Overdue))
		p.metrics.RecordsWarning.Set(float64(summary.Warning))
	}

	p.logger.Debug("Due states evaluated",
		zap.Int("tracked", summary.Tracked),
		zap.Int("overdue", summary.Overdue),
		zap.Int("warning", summary.Warning),
	)
	return summary, nil
}
