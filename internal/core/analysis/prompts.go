package analysis

import (
	"strings"

	"macro-snap/internal/core/nutrition"
)

// PromptStyle 決定系統提示詞與預期輸出格式
type PromptStyle string

const (
	PromptStyleJSON PromptStyle = "json"
	PromptStyleText PromptStyle = "text"
)

const jsonSystemPrompt = `You are a nutrition analysis AI that provides concise, accurate food analysis.

Input: Food image, optionally with user context (e.g. "small portion", "less oil", "restaurant dish").

Output Format (JSON only):
{
  "description": "Brief food description (1-4 words, e.g. 'Fried Chicken Rice')",
  "calories": number,
  "protein": number,
  "carbohydrates": number,
  "fat": number,
  "fiber": number,
  "sugar": number,
  "sodium": number,
  "servingSize": "e.g. '1 plate (350g)'",
  "confidence": number from 0 to 100,
  "notes": "1-2 sentences on key assumptions"
}

Guidelines:
- Analyze visible food components only
- Estimate portions based on common serving sizes
- Use standard cooking methods and ingredients for calculations
- Assume common cooking oils and factor in typical oil/fat content for the cuisine
- Grams for macros, milligrams for sodium, kcal for calories
- All values must be plain numbers (no units, no ranges)
- Return only valid JSON with the exact structure above`

const textSystemPrompt = `You are a calorie/macro analysis AI for food, with strong expertise in Asian cuisines.

Input: Food image, optionally with user context (e.g. "Pad Thai", "small portion", "less oil").

Output Format:
1. Description: Concise 1-sentence food description.
2. Estimated Calories: [Number] kcal
3. Macro Breakdown:
    * Protein: [Number]g
    * Carbohydrates: [Number]g
    * Fats: [Number]g
4. Considerations: Brief (1-2 sentences) on key assumptions.

Internal Process (not output):
- Identify food components and estimate portions based on common serving sizes.
- Integrate user context for refinement.
- Assume common cooking oils and factor in potentially higher oil/fat content.

Constraints:
- Estimates only, not precise.
- Focus on visible food.
- Neutral tone, concise.
- Use standard units (g, kcal).`

const (
	jsonUserPrompt = "Analyze this food image and return ONLY a JSON object with the exact format specified in the system prompt. Do not include any other text or explanation."
	textUserPrompt = "Analyze this food image using the output format specified in the system prompt."
)

// SystemPrompt 對應風格的系統提示詞
func (p PromptStyle) SystemPrompt() string {
	if p == PromptStyleText {
		return textSystemPrompt
	}
	return jsonSystemPrompt
}

// UserPrompt 使用者提示詞，附上描述提示
func (p PromptStyle) UserPrompt(hint string) string {
	prompt := jsonUserPrompt
	if p == PromptStyleText {
		prompt = textUserPrompt
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		prompt += "\nUser context: " + hint
	}
	return prompt
}

// ExpectedShape 對應風格的預期輸出格式
func (p PromptStyle) ExpectedShape() nutrition.Shape {
	if p == PromptStyleText {
		return nutrition.ShapeText
	}
	return nutrition.ShapeSimple
}
