package models

import "strings"

// keySeparator 不会出现在转义后的组成部分中，保证拼接结果单射
const keySeparator = "_"

// "/" "?" "#" 会破坏 URL 路径，"+" "#" 是 MQTT 通配符
var keyEscaper = strings.NewReplacer(
	"%", "%25",
	"_", "%5F",
	"/", "%2F",
	"?", "%3F",
	"#", "%23",
	"+", "%2B",
)

// CharacteristicKey 监控特性的身份（工位 AP / 订单 PO / 工序 OP / 特性编号）
type CharacteristicKey struct {
	Workstation string `json:"workstation"`
	Order       string `json:"order"`
	Process     string `json:"process"`
	ItemNumber  string `json:"item_number"`
}

// ID 返回确定性的 DNA id；任一组成部分为空时返回 InvalidKeyError
func (k CharacteristicKey) ID() (string, error) {
	var missing []string
	if strings.TrimSpace(k.Workstation) == "" {
		missing = append(missing, "workstation")
	}
	if strings.TrimSpace(k.Order) == "" {
		missing = append(missing, "order")
	}
	if strings.TrimSpace(k.Process) == "" {
		missing = append(missing, "process")
	}
	if strings.TrimSpace(k.ItemNumber) == "" {
		missing = append(missing, "item_number")
	}
	if len(missing) > 0 {
		return "", &InvalidKeyError{Missing: missing}
	}

	return strings.Join([]string{
		keyEscaper.Replace(k.Workstation),
		keyEscaper.Replace(k.Order),
		keyEscaper.Replace(k.Process),
		keyEscaper.Replace(k.ItemNumber),
	}, keySeparator), nil
}

// ResolveKey 由工位、订单、工序、特性编号得到 DNA id
func ResolveKey(workstation, order, process, itemNumber string) (string, error) {
	return CharacteristicKey{
		Workstation: workstation,
		Order:       order,
		Process:     process,
		ItemNumber:  itemNumber,
	}.ID()
}
