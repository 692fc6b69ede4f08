package nutrition

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// toNumber 模擬 Number(x) || 0：非數值、缺漏或 NaN 一律為 0
func toNumber(v interface{}) float64 {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = x
	case int:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// digitsToInt 先捨去第一個小數點之後的內容，再去除非數字字元轉為整數，
// 例如 "850 kcal" -> 850、"1,200kcal" -> 1200、"12.5g" -> 12（而非 125）
func digitsToInt(v interface{}) float64 {
	switch x := v.(type) {
	case json.Number, float64, int:
		return math.Trunc(toNumber(x))
	case string:
		s := x
		if idx := strings.IndexByte(s, '.'); idx >= 0 {
			s = s[:idx]
		}
		var b strings.Builder
		for _, r := range s {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		n, err := strconv.ParseInt(b.String(), 10, 64)
		if err != nil {
			return 0
		}
		return float64(n)
	default:
		return 0
	}
}

// stringField 依序取第一個非空字串欄位
func stringField(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// numberField 依序取第一個存在的欄位並轉為數值
func numberField(obj map[string]interface{}, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			return toNumber(v)
		}
	}
	return 0
}

// hasAny 任一鍵存在且非 null
func hasAny(obj map[string]interface{}, keys ...string) bool {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return true
		}
	}
	return false
}

// hasKey 鍵存在即可，值為 null 也算
func hasKey(obj map[string]interface{}, key string) bool {
	_, ok := obj[key]
	return ok
}

// hasText 任一鍵為非空字串
func hasText(obj map[string]interface{}, keys ...string) bool {
	return stringField(obj, keys...) != ""
}

// isListMarker 判斷行首是否為編號（"1. " "2) " 等），"3.5 oz" 不算
func isListMarker(line string) bool {
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i == 0 || i >= len(line) || (line[i] != '.' && line[i] != ')') {
		return false
	}
	return i+1 == len(line) || line[i+1] == ' ' || line[i+1] == '\t'
}
