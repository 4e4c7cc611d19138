package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DnaRecord 每个监控特性唯一的监控记录（身份 + 当前控制状态）
type DnaRecord struct {
	ID          string   `json:"id"`
	Workstation string   `json:"workstation"`
	Order       string   `json:"order"`
	Process     string   `json:"process"`
	ItemNumber  string   `json:"item_number"`
	CharType    CharType `json:"charType"`

	LSL  *float64 `json:"LSL,omitempty"`
	USL  *float64 `json:"USL,omitempty"`
	LCL  *float64 `json:"LCL,omitempty"`
	CL   *float64 `json:"CL,omitempty"`
	UCL  *float64 `json:"UCL,omitempty"`
	SUSL *float64 `json:"sUSL,omitempty"`

	SampleSize *int `json:"SampleSize,omitempty"`
	Frequency  *int `json:"Frequency,omitempty"` // 分钟

	CheckStatus          *string    `json:"checkStatus,omitempty"`
	LastCheckTimestamp   *time.Time `json:"lastCheckTimestamp,omitempty"`
	Memo                 *string    `json:"Memo,omitempty"`
	ImageURL             *string    `json:"imageUrl,omitempty"`
	ImageURLLatestSample *string    `json:"imageUrlLatestSample,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key 返回记录的身份
func (d DnaRecord) Key() CharacteristicKey {
	return CharacteristicKey{
		Workstation: d.Workstation,
		Order:       d.Order,
		Process:     d.Process,
		ItemNumber:  d.ItemNumber,
	}
}

// Limits 返回当前限值
func (d DnaRecord) Limits() Limits {
	return Limits{
		LSL:  d.LSL,
		USL:  d.USL,
		LCL:  d.LCL,
		CL:   d.CL,
		UCL:  d.UCL,
		SUSL: d.SUSL,
	}
}

// RequiredSampleSize 返回要求的样本量，未设置时为 0
func (d DnaRecord) RequiredSampleSize() int {
	if d.SampleSize == nil {
		return 0
	}
	return *d.SampleSize
}

// NewDnaRecord 首次访问时由设计特性创建 DNA 记录
func NewDnaRecord(id string, key CharacteristicKey, seed Characteristic, now time.Time) DnaRecord {
	return DnaRecord{
		ID:          id,
		Workstation: key.Workstation,
		Order:       key.Order,
		Process:     key.Process,
		ItemNumber:  key.ItemNumber,
		CharType:    seed.CharType,
		LSL:         cloneFloat(seed.LSL),
		USL:         cloneFloat(seed.USL),
		LCL:         cloneFloat(seed.LCL),
		CL:          cloneFloat(seed.CL),
		UCL:         cloneFloat(seed.UCL),
		SUSL:        cloneFloat(seed.SUSL),
		SampleSize:  cloneInt(seed.SampleSize),
		Frequency:   cloneInt(seed.Frequency),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone 深拷贝，避免调用方通过指针改动存储中的记录
func (d DnaRecord) Clone() DnaRecord {
	c := d
	c.LSL = cloneFloat(d.LSL)
	c.USL = cloneFloat(d.USL)
	c.LCL = cloneFloat(d.LCL)
	c.CL = cloneFloat(d.CL)
	c.UCL = cloneFloat(d.UCL)
	c.SUSL = cloneFloat(d.SUSL)
	c.SampleSize = cloneInt(d.SampleSize)
	c.Frequency = cloneInt(d.Frequency)
	c.CheckStatus = cloneString(d.CheckStatus)
	c.Memo = cloneString(d.Memo)
	c.ImageURL = cloneString(d.ImageURL)
	c.ImageURLLatestSample = cloneString(d.ImageURLLatestSample)
	if d.LastCheckTimestamp != nil {
		t := *d.LastCheckTimestamp
		c.LastCheckTimestamp = &t
	}
	return c
}

// ============================================
// 局部更新（字段白名单）
// ============================================

// 允许局部更新的字段名
const (
	FieldLSL                  = "LSL"
	FieldLCL                  = "LCL"
	FieldCL                   = "CL"
	FieldUCL                  = "UCL"
	FieldUSL                  = "USL"
	FieldSUSL                 = "sUSL"
	FieldSampleSize           = "SampleSize"
	FieldFrequency            = "Frequency"
	FieldCheckStatus          = "checkStatus"
	FieldLastCheckTimestamp   = "lastCheckTimestamp"
	FieldMemo                 = "Memo"
	FieldImageURL             = "imageUrl"
	FieldImageURLLatestSample = "imageUrlLatestSample"
)

type fieldKind int

const (
	kindFloat fieldKind = iota
	kindInt
	kindString
	kindTime
)

// DnaPatchFields 白名单（顺序固定，供存储层生成稳定的 SQL）
var DnaPatchFields = []string{
	FieldLSL, FieldLCL, FieldCL, FieldUCL, FieldUSL, FieldSUSL,
	FieldSampleSize, FieldFrequency,
	FieldCheckStatus, FieldLastCheckTimestamp,
	FieldMemo, FieldImageURL, FieldImageURLLatestSample,
}

var dnaFieldKinds = map[string]fieldKind{
	FieldLSL:                  kindFloat,
	FieldLCL:                  kindFloat,
	FieldCL:                   kindFloat,
	FieldUCL:                  kindFloat,
	FieldUSL:                  kindFloat,
	FieldSUSL:                 kindFloat,
	FieldSampleSize:           kindInt,
	FieldFrequency:            kindInt,
	FieldCheckStatus:          kindString,
	FieldLastCheckTimestamp:   kindTime,
	FieldMemo:                 kindString,
	FieldImageURL:             kindString,
	FieldImageURLLatestSample: kindString,
}

// DnaPatch DNA 局部更新，key 为白名单字段名，value 为 nil 表示清空
type DnaPatch map[string]any

// Validate 校验字段名与值类型
func (p DnaPatch) Validate() error {
	_, err := p.Normalize()
	return err
}

// Normalize 把值统一为 *float64 / *int / *string / *time.Time
func (p DnaPatch) Normalize() (map[string]any, error) {
	out := make(map[string]any, len(p))
	for field, raw := range p {
		kind, ok := dnaFieldKinds[field]
		if !ok {
			return nil, &InvalidFieldError{Field: field}
		}
		var (
			v   any
			err error
		)
		switch kind {
		case kindFloat:
			v, err = toFloatPtr(raw)
		case kindInt:
			v, err = toIntPtr(raw)
		case kindString:
			v, err = toStringPtr(raw)
		case kindTime:
			v, err = toTimePtr(raw)
		}
		if err != nil {
			return nil, &InvalidFieldError{Field: field, Reason: err.Error()}
		}
		out[field] = v
	}
	return out, nil
}

// ApplyTo 把更新合并到记录上（未出现的字段保持不变）
func (p DnaPatch) ApplyTo(rec *DnaRecord) error {
	values, err := p.Normalize()
	if err != nil {
		return err
	}
	for field, v := range values {
		switch field {
		case FieldLSL:
			rec.LSL = v.(*float64)
		case FieldLCL:
			rec.LCL = v.(*float64)
		case FieldCL:
			rec.CL = v.(*float64)
		case FieldUCL:
			rec.UCL = v.(*float64)
		case FieldUSL:
			rec.USL = v.(*float64)
		case FieldSUSL:
			rec.SUSL = v.(*float64)
		case FieldSampleSize:
			rec.SampleSize = v.(*int)
		case FieldFrequency:
			rec.Frequency = v.(*int)
		case FieldCheckStatus:
			rec.CheckStatus = v.(*string)
		case FieldLastCheckTimestamp:
			rec.LastCheckTimestamp = v.(*time.Time)
		case FieldMemo:
			rec.Memo = v.(*string)
		case FieldImageURL:
			rec.ImageURL = v.(*string)
		case FieldImageURLLatestSample:
			rec.ImageURLLatestSample = v.(*string)
		}
	}
	return nil
}

func toFloatPtr(raw any) (*float64, error) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case *float64:
		if v == nil {
			return nil, nil
		}
		f = *v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("not a number: %s", v)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("expected number, got %T", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a finite number")
	}
	return &f, nil
}

func toIntPtr(raw any) (*int, error) {
	var n int
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int:
		n = v
	case *int:
		if v == nil {
			return nil, nil
		}
		n = *v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("expected integer, got %v", v)
		}
		if v < math.MinInt || v >= math.MaxInt {
			return nil, fmt.Errorf("integer out of range: %v", v)
		}
		n = int(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %s", v)
		}
		n = int(parsed)
	default:
		return nil, fmt.Errorf("expected integer, got %T", raw)
	}
	if n < 0 {
		return nil, fmt.Errorf("must not be negative")
	}
	return &n, nil
}

func toStringPtr(raw any) (*string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	case *string:
		return cloneString(v), nil
	default:
		return nil, fmt.Errorf("expected string, got %T", raw)
	}
}

func toTimePtr(raw any) (*time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		t := *v
		return &t, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("expected RFC 3339 timestamp, got %q", v)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("expected timestamp, got %T", raw)
	}
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
