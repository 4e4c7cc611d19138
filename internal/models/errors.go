package models

import (
	"errors"
	"fmt"
	"strings"
)

// 错误分类（用 errors.Is 判断）
var (
	ErrInvalidKey         = errors.New("invalid characteristic key")
	ErrInvalidField       = errors.New("invalid dna field")
	ErrSampleSizeMismatch = errors.New("sample size mismatch")
	ErrEmptyInput         = errors.New("empty sample input")
	ErrNotFound           = errors.New("not found")
)

// InvalidKeyError 特性标识的组成部分缺失
type InvalidKeyError struct {
	Missing []string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid characteristic key: missing %s", strings.Join(e.Missing, ", "))
}

func (e *InvalidKeyError) Is(target error) bool { return target == ErrInvalidKey }

// InvalidFieldError DNA 局部更新中出现白名单以外的字段，或字段类型错误
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid dna field %q: not updatable", e.Field)
	}
	return fmt.Sprintf("invalid dna field %q: %s", e.Field, e.Reason)
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrInvalidField }

// SampleSizeMismatchError 解析出的数值个数与要求的样本量不一致
type SampleSizeMismatchError struct {
	Required int
	Got      int
}

func (e *SampleSizeMismatchError) Error() string {
	return fmt.Sprintf("sample size mismatch: need %d values, got %d", e.Required, e.Got)
}

func (e *SampleSizeMismatchError) Is(target error) bool { return target == ErrSampleSizeMismatch }

// EmptyInputError 没有解析出任何有效数值
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string { return "no valid numeric value in sample input" }

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// NotFoundError 特性或 DNA 记录不存在
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsValidationError 是否为操作员可修正的输入错误
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrInvalidField) ||
		errors.Is(err, ErrSampleSizeMismatch) ||
		errors.Is(err, ErrEmptyInput)
}
