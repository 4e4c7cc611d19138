package evaluator

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"qp-spc/internal/models"
)

var (
	// 两个数字之间的逗号视为小数点，如 "10,5" -> "10.5"
	decimalComma = regexp.MustCompile(`(\d),(\d)`)
	// 其余的分隔符与字母都当作换行
	tokenSeparators = regexp.MustCompile(`[,/\\;\p{L}]`)
)

// ParseSampleInput 把操作员输入的自由文本解析为数值列表（保持输入顺序）
func ParseSampleInput(raw string) []float64 {
	normalized := decimalComma.ReplaceAllString(raw, "$1.$2")
	normalized = tokenSeparators.ReplaceAllString(normalized, "\n")

	values := make([]float64, 0)
	for _, token := range strings.Fields(normalized) {
		v, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
	}
	return values
}

// ValidateSampleSize 提交前的样本量检查
// required > 0 时数值个数必须正好等于 required；否则至少要有一个数值
func ValidateSampleSize(values []float64, required int) error {
	if required > 0 {
		if len(values) != required {
			return &models.SampleSizeMismatchError{Required: required, Got: len(values)}
		}
		return nil
	}
	if len(values) == 0 {
		return &models.EmptyInputError{}
	}
	return nil
}
