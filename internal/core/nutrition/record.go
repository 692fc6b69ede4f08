package nutrition

import (
	"math"
	"strings"
)

// 每克熱量與百分比參考值
const (
	ProteinKcalPerGram = 4.0
	CarbsKcalPerGram   = 4.0
	FatKcalPerGram     = 9.0
	ReferenceDailyKcal = 2000.0
)

// 預設值
const (
	DefaultDescription = "Food Analysis"
	DefaultFoodName    = "Unknown Food"
	DefaultServingSize = "Standard serving"
	DefaultNotes       = "Values are AI estimates based on the visible portion."
	FallbackNotes      = "Unable to parse nutrition data from the AI response. Please review the raw description."
)

// Source 標記產生紀錄的解析策略
type Source string

const (
	SourceAggregateJSON Source = "json_aggregate"
	SourceMacroInfoJSON Source = "json_macro_info"
	SourceSimpleJSON    Source = "json_simple"
	SourceText          Source = "text"
	SourceFallback      Source = "fallback"
)

// Record 營養分析結果，欄位永遠完整填寫
type Record struct {
	Description       string  `json:"description"`
	FoodName          string  `json:"foodName"`
	Calories          float64 `json:"calories"`
	Protein           float64 `json:"protein"`
	Carbohydrates     float64 `json:"carbohydrates"`
	Fat               float64 `json:"fat"`
	Fiber             float64 `json:"fiber"`
	Sugar             float64 `json:"sugar"`
	Sodium            float64 `json:"sodium"`
	Cholesterol       float64 `json:"cholesterol"`
	ServingSize       string  `json:"servingSize"`
	ProteinPercentage float64 `json:"proteinPercentage"`
	CarbsPercentage   float64 `json:"carbsPercentage"`
	FatPercentage     float64 `json:"fatPercentage"`
	Confidence        float64 `json:"confidence"`
	Notes             string  `json:"notes"`
	Source            Source  `json:"source"`
}

// MacroPercentage 以 2000 kcal 為基準計算巨量營養素百分比
func MacroPercentage(grams, kcalPerGram float64) float64 {
	pct := math.Round(grams * kcalPerGram / ReferenceDailyKcal * 100)
	return clampRange(pct, 0, 100)
}

// FallbackRecord 所有策略失敗時的預設紀錄
func FallbackRecord() Record {
	return finalize(Record{
		Description: DefaultDescription,
		FoodName:    DefaultFoodName,
		Notes:       FallbackNotes,
		Source:      SourceFallback,
	})
}

// FoodNameFromDescription 取描述中第一個句點前的文字作為食物名稱
func FoodNameFromDescription(description string) string {
	name := strings.TrimSpace(description)
	if idx := strings.Index(name, "."); idx > 0 {
		name = strings.TrimSpace(name[:idx])
	}
	return name
}

// finalize 補齊預設值、修正負數並計算衍生百分比
func finalize(r Record) Record {
	r.Description = strings.TrimSpace(r.Description)
	r.FoodName = strings.TrimSpace(r.FoodName)
	if r.Description == "" {
		r.Description = DefaultDescription
	}
	if r.FoodName == "" && r.Description != DefaultDescription {
		r.FoodName = FoodNameFromDescription(r.Description)
	}
	if r.FoodName == "" {
		r.FoodName = DefaultFoodName
	}
	if strings.TrimSpace(r.ServingSize) == "" {
		r.ServingSize = DefaultServingSize
	}
	if strings.TrimSpace(r.Notes) == "" {
		r.Notes = DefaultNotes
	}
	if r.Source == "" {
		r.Source = SourceFallback
	}

	r.Calories = nonNegative(r.Calories)
	r.Protein = nonNegative(r.Protein)
	r.Carbohydrates = nonNegative(r.Carbohydrates)
	r.Fat = nonNegative(r.Fat)
	r.Fiber = nonNegative(r.Fiber)
	r.Sugar = nonNegative(r.Sugar)
	r.Sodium = nonNegative(r.Sodium)
	r.Cholesterol = nonNegative(r.Cholesterol)
	r.Confidence = clampRange(r.Confidence, 0, 100)

	r.ProteinPercentage = MacroPercentage(r.Protein, ProteinKcalPerGram)
	r.CarbsPercentage = MacroPercentage(r.Carbohydrates, CarbsKcalPerGram)
	r.FatPercentage = MacroPercentage(r.Fat, FatKcalPerGram)
	return r
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
