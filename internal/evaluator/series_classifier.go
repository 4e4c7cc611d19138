package evaluator

import (
	"sort"

	"qp-spc/internal/models"
)

// ClassifiedPoint 图表上的一个点
type ClassifiedPoint struct {
	Sample    models.SampleRecord `json:"sample"`
	Severity  Severity            `json:"severity"`
	Exception *Exception          `json:"exception,omitempty"`
}

// ClassifySeries 用记录的当前限值重新分级历史样本
// 限值被修改后历史点按新限值着色
func ClassifySeries(samples []models.SampleRecord, current models.DnaRecord) []ClassifiedPoint {
	sorted := make([]models.SampleRecord, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	limits := current.Limits()
	points := make([]ClassifiedPoint, 0, len(sorted))
	for _, s := range sorted {
		exc := classifySample(s, limits)
		point := ClassifiedPoint{Sample: s, Severity: SeverityNormal, Exception: exc}
		if exc != nil {
			point.Severity = exc.Severity
		}
		points = append(points, point)
	}
	return points
}

func classifySample(s models.SampleRecord, limits models.Limits) *Exception {
	if s.IsAttribute() {
		if *s.Defects > 0 {
			return defectsException(*s.Defects)
		}
		return nil
	}
	if len(s.Values) > 0 {
		eval, err := EvaluateVariable(s.Values, limits)
		if err == nil {
			return eval.Exception
		}
	}
	// 没有保留单值的旧记录只能按存储的统计量判断控制限
	return checkControl(s.Mean, s.StdDev, limits)
}
