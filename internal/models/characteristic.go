package models

// CharType 特性类型
type CharType string

const (
	CharTypeP CharType = "P" // 计量型（产品）
	CharTypeL CharType = "L" // 计量型（过程）
	CharTypeA CharType = "A" // 计数型（合格/不合格）
)

// IsVariable 是否为计量型特性
func (t CharType) IsVariable() bool {
	return t == CharTypeP || t == CharTypeL
}

// Valid 是否为已知类型
func (t CharType) Valid() bool {
	return t == CharTypeP || t == CharTypeL || t == CharTypeA
}

// Characteristic 控制计划中的设计特性（只读）
type Characteristic struct {
	PlanNumber    string   `json:"plan_number" yaml:"plan_number"`
	ProcessNumber string   `json:"process_number" yaml:"process_number"`
	ItemNumber    string   `json:"item_number" yaml:"item_number"`
	Description   string   `json:"description,omitempty" yaml:"description"`
	CharType      CharType `json:"char_type" yaml:"char_type"`
	Nominal       *float64 `json:"nominal,omitempty" yaml:"nominal"`
	LSL           *float64 `json:"lsl,omitempty" yaml:"lsl"`
	USL           *float64 `json:"usl,omitempty" yaml:"usl"`
	LCL           *float64 `json:"lcl,omitempty" yaml:"lcl"`
	CL            *float64 `json:"cl,omitempty" yaml:"cl"`
	UCL           *float64 `json:"ucl,omitempty" yaml:"ucl"`
	SUSL          *float64 `json:"s_usl,omitempty" yaml:"s_usl"`
	Units         string   `json:"units,omitempty" yaml:"units"`
	SampleSize    *int     `json:"sample_size,omitempty" yaml:"sample_size"`
	Frequency     *int     `json:"frequency,omitempty" yaml:"frequency"` // 分钟
	CTQ           bool     `json:"ctq,omitempty" yaml:"ctq"`
}

// Limits 评估用的规格限与控制限，nil 表示未设置
type Limits struct {
	LSL  *float64 `json:"lsl,omitempty"`
	USL  *float64 `json:"usl,omitempty"`
	LCL  *float64 `json:"lcl,omitempty"`
	CL   *float64 `json:"cl,omitempty"`
	UCL  *float64 `json:"ucl,omitempty"`
	SUSL *float64 `json:"s_usl,omitempty"`
}

// Limits 返回设计限值
func (c Characteristic) Limits() Limits {
	return Limits{
		LSL:  c.LSL,
		USL:  c.USL,
		LCL:  c.LCL,
		CL:   c.CL,
		UCL:  c.UCL,
		SUSL: c.SUSL,
	}
}
