package nutrition

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	labelPattern    = regexp.MustCompile(`(?i)^(description|food name|estimated calories|calories|protein|carbohydrates|carbs|fats|fat|fiber|sugar|sodium|serving size|considerations|notes)\s*:\s*(.*)$`)
	kcalPattern     = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(?:kcal|calories)\b`)
	gramsPattern    = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*g(?:rams?)?\b`)
	milligramsMatch = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*mg\b`)
	decoration      = strings.NewReplacer("**", "", "__", "", "`", "", "#", "")
)

// textStrategy 解析帶標籤的多行文字，例如 "Estimated Calories: 650 kcal"
type textStrategy struct{}

func (textStrategy) Shape() Shape { return ShapeText }

func (textStrategy) Parse(in *Input) (Record, bool) {
	rec, found := parseLabeledText(in.Stripped)
	if !found {
		return Record{}, false
	}
	rec.Source = SourceText
	return rec, true
}

// parseLabeledText 至少找到一個熱量或巨量營養素數值才視為成功
func parseLabeledText(text string) (Record, bool) {
	var (
		rec         Record
		firstLine   string
		description string
		found       bool
	)

	for _, rawLine := range strings.Split(text, "\n") {
		line := cleanLine(rawLine)
		if line == "" {
			continue
		}
		numbered := isListMarker(line)
		if numbered {
			line = stripListMarker(line)
		}

		m := labelPattern.FindStringSubmatch(line)
		if m == nil {
			if firstLine == "" && !numbered {
				firstLine = line
			}
			continue
		}

		label, value := strings.ToLower(m[1]), strings.TrimSpace(m[2])
		switch label {
		case "description":
			if description == "" {
				description = value
			}
		case "food name":
			if rec.FoodName == "" {
				rec.FoodName = value
			}
		case "estimated calories", "calories":
			if v, ok := leadingNumber(kcalPattern, value); ok {
				rec.Calories = v
				found = true
			}
		case "protein":
			if v, ok := leadingNumber(gramsPattern, value); ok {
				rec.Protein = v
				found = true
			}
		case "carbohydrates", "carbs":
			if v, ok := leadingNumber(gramsPattern, value); ok {
				rec.Carbohydrates = v
				found = true
			}
		case "fats", "fat":
			if v, ok := leadingNumber(gramsPattern, value); ok {
				rec.Fat = v
				found = true
			}
		case "fiber":
			rec.Fiber, _ = leadingNumber(gramsPattern, value)
		case "sugar":
			rec.Sugar, _ = leadingNumber(gramsPattern, value)
		case "sodium":
			rec.Sodium, _ = leadingNumber(milligramsMatch, value)
		case "serving size":
			rec.ServingSize = value
		case "considerations", "notes":
			if rec.Notes == "" {
				rec.Notes = value
			}
		}
	}

	if !found {
		return Record{}, false
	}

	if description == "" {
		description = firstLine
	}
	rec.Description = description
	if rec.FoodName == "" {
		rec.FoodName = FoodNameFromDescription(description)
	}
	return rec, true
}

// cleanLine 移除 markdown 粗體、標題與清單符號
func cleanLine(line string) string {
	line = strings.TrimSpace(decoration.Replace(line))
	line = strings.TrimLeft(line, "-*• \t")
	return strings.TrimSpace(line)
}

// stripListMarker 移除行首的 "1." 或 "2)"
func stripListMarker(line string) string {
	i := strings.IndexAny(line, ".)")
	return cleanLine(line[i+1:])
}

// leadingNumber 取單位前的數值；範圍值（"600-700 kcal"）取緊鄰單位的上限
func leadingNumber(pattern *regexp.Regexp, value string) (float64, bool) {
	m := pattern.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
