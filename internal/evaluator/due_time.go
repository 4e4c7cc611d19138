package evaluator

import (
	"math"
	"time"
)

// warningRatio 检查周期已过去 80% 时进入预警
const warningRatio = 0.8

// DueState 下一次检查的到期状态
type DueState struct {
	DueAt            time.Time `json:"due_at"`
	RemainingMinutes int       `json:"remaining_minutes"`
	Overdue          bool      `json:"overdue"`
	Warning          bool      `json:"warning"`
}

// ComputeDueState 根据上次检查时间和检查频率（分钟）计算到期状态
// 任一输入缺失或频率不为正时返回 nil（无法跟踪）
func ComputeDueState(lastCheck *time.Time, frequencyMinutes *int, now time.Time) *DueState {
	if lastCheck == nil || frequencyMinutes == nil || *frequencyMinutes <= 0 {
		return nil
	}
	freq := *frequencyMinutes

	dueAt := lastCheck.Add(time.Duration(freq) * time.Minute)
	remaining := int(math.Floor(float64(dueAt.Sub(now)) / float64(time.Minute)))
	overdue := remaining < 0

	return &DueState{
		DueAt:            dueAt,
		RemainingMinutes: remaining,
		Overdue:          overdue,
		Warning:          !overdue && float64(freq-remaining)/float64(freq) >= warningRatio,
	}
}
