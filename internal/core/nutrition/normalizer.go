package nutrition

import (
	"fmt"

	"macro-snap/internal/pkg/common"

	"go.uber.org/zap"
)

// Shape 模型輸出的預期格式
type Shape string

const (
	ShapeAuto      Shape = ""
	ShapeSimple    Shape = "simple"
	ShapeAggregate Shape = "aggregate"
	ShapeMacroInfo Shape = "macro_info"
	ShapeText      Shape = "text"
)

// ParseShape 解析設定或請求中的格式名稱，未知值視為 auto
func ParseShape(s string) Shape {
	switch Shape(s) {
	case ShapeSimple, ShapeAggregate, ShapeMacroInfo, ShapeText:
		return Shape(s)
	}
	return ShapeAuto
}

// Strategy 單一解析策略，必須是 total 且無副作用
type Strategy interface {
	Shape() Shape
	Parse(in *Input) (Record, bool)
}

// Input 一次正規化的共用輸入；JSON 只解析一次，供所有 JSON 策略共用
type Input struct {
	Raw      string
	Stripped string

	decoded bool
	object  map[string]interface{}
}

// Object 回傳解析後的 JSON 物件，失敗時回傳 nil
func (in *Input) Object() map[string]interface{} {
	if !in.decoded {
		in.decoded = true
		in.object = decodeObject(in.Stripped)
	}
	return in.object
}

// decodeObject 依序嘗試：原文、{...} 子字串、補上引號的鍵
func decodeObject(text string) map[string]interface{} {
	candidates := []string{text}
	if sub, ok := common.ExtractJSONObject(text); ok && sub != text {
		candidates = append(candidates, sub)
	}
	for _, c := range candidates {
		if obj, ok := parseObject(c); ok {
			return obj
		}
	}
	for _, c := range candidates {
		if obj, ok := parseObject(common.QuoteJSONKeys(c)); ok {
			return obj
		}
	}
	return nil
}

func parseObject(text string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := common.ParseJSON(text, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// Option Normalizer 設定
type Option func(*Normalizer)

// WithExpectedShape 將預期格式的策略移到最前面
func WithExpectedShape(shape Shape) Option {
	return func(n *Normalizer) {
		n.expected = shape
	}
}

// WithStrategies 覆寫策略清單
func WithStrategies(strategies ...Strategy) Option {
	return func(n *Normalizer) {
		n.strategies = strategies
	}
}

// Normalizer 依序嘗試策略，第一個成功者勝出，最後回到預設紀錄
type Normalizer struct {
	strategies []Strategy
	expected   Shape
}

// DefaultStrategies 預設策略順序
func DefaultStrategies() []Strategy {
	return []Strategy{
		aggregateStrategy{},
		macroInfoStrategy{},
		simpleStrategy{},
		textStrategy{},
	}
}

// NewNormalizer 創建正規化器
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{strategies: DefaultStrategies()}
	for _, opt := range opts {
		opt(n)
	}
	if n.expected != ShapeAuto {
		n.strategies = prioritize(n.strategies, n.expected)
	}
	return n
}

func prioritize(strategies []Strategy, shape Shape) []Strategy {
	ordered := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.Shape() == shape {
			ordered = append(ordered, s)
		}
	}
	for _, s := range strategies {
		if s.Shape() != shape {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

var defaultNormalizer = NewNormalizer()

// Normalize 使用預設策略正規化模型輸出
func Normalize(raw string) Record {
	return defaultNormalizer.Normalize(raw)
}

// Normalize 將模型原始輸出轉為完整的營養紀錄，任何失敗都退回較低精度的結果
func (n *Normalizer) Normalize(raw string) (record Record) {
	defer func() {
		if r := recover(); r != nil {
			common.LogError("營養資料正規化發生 panic",
				zap.String("panic", fmt.Sprint(r)),
				zap.Int("raw_length", len(raw)),
			)
			record = FallbackRecord()
		}
	}()

	in := &Input{Raw: raw, Stripped: common.StripCodeFence(raw)}
	if in.Stripped == "" {
		common.LogDebug("AI 回應為空，使用預設紀錄")
		return FallbackRecord()
	}

	for _, s := range n.strategies {
		rec, ok := s.Parse(in)
		if !ok {
			continue
		}
		common.LogDebug("營養資料正規化完成",
			zap.String("strategy", string(s.Shape())),
			zap.Int("raw_length", len(raw)),
		)
		return finalize(rec)
	}

	common.LogWarn("無法解析 AI 回應，使用預設紀錄",
		zap.Int("raw_length", len(raw)),
		zap.String("raw_preview", common.Truncate(in.Stripped, 200)),
	)
	return FallbackRecord()
}
