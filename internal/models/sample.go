package models

import (
	"fmt"
	"time"
)

// SampleRecord 一次测量/检验记录
// 计量型携带 Values，计数型携带 Defects + SampleSize，二者互斥
type SampleRecord struct {
	ID        string    `json:"id"`
	DnaID     string    `json:"dna_id"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Exception bool      `json:"exception"`

	Values []float64 `json:"values,omitempty"`

	Defects    *int `json:"defects,omitempty"`
	SampleSize *int `json:"sample_size,omitempty"`

	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// IsAttribute 是否为计数型记录
func (s SampleRecord) IsAttribute() bool {
	return s.Defects != nil
}

// Validate 校验记录结构
func (s SampleRecord) Validate() error {
	if s.DnaID == "" {
		return fmt.Errorf("sample dna_id is required")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("sample timestamp is required")
	}
	hasValues := len(s.Values) > 0
	if hasValues && s.Defects != nil {
		return fmt.Errorf("sample carries both values and defects")
	}
	if !hasValues && s.Defects == nil {
		return fmt.Errorf("sample carries neither values nor defects")
	}
	if s.Defects != nil && s.SampleSize == nil {
		return fmt.Errorf("attribute sample requires sample_size")
	}
	return nil
}
