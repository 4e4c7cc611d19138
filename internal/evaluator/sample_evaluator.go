package evaluator

import (
	"fmt"
	"math"

	"qp-spc/internal/models"
)

// Severity 样本的严重级别（决定提示与图表颜色）
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityNormal   Severity = "normal"
)

// ExceptionKind 异常类型
type ExceptionKind string

const (
	KindOutOfSpecHigh     ExceptionKind = "out_of_spec_high"
	KindOutOfSpecLow      ExceptionKind = "out_of_spec_low"
	KindOutOfControlHigh  ExceptionKind = "out_of_control_high"
	KindOutOfControlLow   ExceptionKind = "out_of_control_low"
	KindOutOfControlSigma ExceptionKind = "out_of_control_dispersion"
	KindDefects           ExceptionKind = "defects"
)

// checkStatus 文本
const (
	StatusOK                = "OK"
	StatusOutOfSpecHigh     = "Out of Spec (High)"
	StatusOutOfSpecLow      = "Out of Spec (Low)"
	StatusOutOfControlHigh  = "Out of Control (High)"
	StatusOutOfControlLow   = "Out of Control (Low)"
	StatusOutOfControlSigma = "Out of Control (Dispersion)"
	StatusDefectsFound      = "Defects Found"
)

// Exception 第一条命中的违规（不累加多条）
type Exception struct {
	Kind     ExceptionKind `json:"kind"`
	Severity Severity      `json:"severity"`
	Status   string        `json:"status"`
	Message  string        `json:"message"`
	Value    float64       `json:"value"` // 触发的数值（单值、均值、标准差或缺陷数）
	Limit    float64       `json:"limit"`
}

// Evaluation 样本统计结果
type Evaluation struct {
	Mean      float64    `json:"mean"`
	StdDev    float64    `json:"stddev"`
	Exception *Exception `json:"exception,omitempty"`
}

// IsException 是否存在违规
func (e Evaluation) IsException() bool {
	return e.Exception != nil
}

// Severity 无违规时为 normal
func (e Evaluation) Severity() Severity {
	if e.Exception == nil {
		return SeverityNormal
	}
	return e.Exception.Severity
}

// Status 返回写入 DNA checkStatus 的文本
func (e Evaluation) Status() string {
	if e.Exception == nil {
		return StatusOK
	}
	return e.Exception.Status
}

// EvaluateVariable 计量型样本：均值、样本标准差与违规分级
func EvaluateVariable(values []float64, limits models.Limits) (Evaluation, error) {
	if len(values) == 0 {
		return Evaluation{}, fmt.Errorf("evaluate variable: no values")
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Evaluation{}, fmt.Errorf("evaluate variable: non-finite value %v", v)
		}
	}

	mean, stddev := meanStdDev(values)
	return Evaluation{
		Mean:      mean,
		StdDev:    stddev,
		Exception: classifyVariable(values, mean, stddev, limits),
	}, nil
}

// EvaluateAttribute 计数型样本：不合格比例及其二项标准差
func EvaluateAttribute(defects, sampleSize int) (Evaluation, error) {
	if sampleSize <= 0 {
		return Evaluation{}, fmt.Errorf("evaluate attribute: sample size must be positive, got %d", sampleSize)
	}
	if defects < 0 || defects > sampleSize {
		return Evaluation{}, fmt.Errorf("evaluate attribute: defects %d out of range [0, %d]", defects, sampleSize)
	}

	p := float64(defects) / float64(sampleSize)
	eval := Evaluation{
		Mean:   p,
		StdDev: math.Sqrt(p * (1 - p)),
	}
	if defects > 0 {
		eval.Exception = defectsException(defects)
	}
	return eval, nil
}

// meanStdDev n == 1 时分母取 1，单值的标准差为 0
func meanStdDev(values []float64) (float64, float64) {
	n := len(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	denom := n - 1
	if n == 1 {
		denom = 1
	}
	return mean, math.Sqrt(sq / float64(denom))
}

// classifyVariable 优先级：超规格 > 均值失控 > 离散失控
func classifyVariable(values []float64, mean, stddev float64, limits models.Limits) *Exception {
	if exc := checkSpec(values, limits); exc != nil {
		return exc
	}
	return checkControl(mean, stddev, limits)
}

func checkSpec(values []float64, limits models.Limits) *Exception {
	if limits.USL != nil {
		for _, v := range values {
			if v > *limits.USL {
				return &Exception{
					Kind:     KindOutOfSpecHigh,
					Severity: SeverityCritical,
					Status:   StatusOutOfSpecHigh,
					Message:  fmt.Sprintf("value %g exceeds USL %g", v, *limits.USL),
					Value:    v,
					Limit:    *limits.USL,
				}
			}
		}
	}
	if limits.LSL != nil {
		for _, v := range values {
			if v < *limits.LSL {
				return &Exception{
					Kind:     KindOutOfSpecLow,
					Severity: SeverityCritical,
					Status:   StatusOutOfSpecLow,
					Message:  fmt.Sprintf("value %g below LSL %g", v, *limits.LSL),
					Value:    v,
					Limit:    *limits.LSL,
				}
			}
		}
	}
	return nil
}

func checkControl(mean, stddev float64, limits models.Limits) *Exception {
	if limits.UCL != nil && mean > *limits.UCL {
		return &Exception{
			Kind:     KindOutOfControlHigh,
			Severity: SeverityWarning,
			Status:   StatusOutOfControlHigh,
			Message:  fmt.Sprintf("mean %g exceeds UCL %g", mean, *limits.UCL),
			Value:    mean,
			Limit:    *limits.UCL,
		}
	}
	if limits.LCL != nil && mean < *limits.LCL {
		return &Exception{
			Kind:     KindOutOfControlLow,
			Severity: SeverityWarning,
			Status:   StatusOutOfControlLow,
			Message:  fmt.Sprintf("mean %g below LCL %g", mean, *limits.LCL),
			Value:    mean,
			Limit:    *limits.LCL,
		}
	}
	if limits.SUSL != nil && stddev > *limits.SUSL {
		return &Exception{
			Kind:     KindOutOfControlSigma,
			Severity: SeverityWarning,
			Status:   StatusOutOfControlSigma,
			Message:  fmt.Sprintf("stddev %g exceeds sUSL %g", stddev, *limits.SUSL),
			Value:    stddev,
			Limit:    *limits.SUSL,
		}
	}
	return nil
}

func defectsException(defects int) *Exception {
	return &Exception{
		Kind:     KindDefects,
		Severity: SeverityCritical,
		Status:   StatusDefectsFound,
		Message:  fmt.Sprintf("%d nonconforming unit(s) found", defects),
		Value:    float64(defects),
	}
}
