package nutrition

// aggregateStrategy 舊版格式：total_* 欄位為帶單位的字串，例如 "850 kcal"
type aggregateStrategy struct{}

func (aggregateStrategy) Shape() Shape { return ShapeAggregate }

func (aggregateStrategy) Parse(in *Input) (Record, bool) {
	obj := in.Object()
	if obj == nil || !hasAny(obj, "total_calories", "components") {
		return Record{}, false
	}

	description := stringField(obj, "description", "food_name", "foodName")
	if description == "" {
		description = DefaultDescription
	}

	return Record{
		Description:   description,
		FoodName:      stringField(obj, "food_name", "foodName"),
		Calories:      digitsToInt(obj["total_calories"]),
		Protein:       digitsToInt(obj["total_protein"]),
		Carbohydrates: digitsToInt(obj["total_carbohydrates"]),
		Fat:           digitsToInt(obj["total_fat"]),
		Fiber:         digitsToInt(obj["total_fiber"]),
		Sugar:         digitsToInt(obj["total_sugar"]),
		Sodium:        digitsToInt(obj["total_sodium"]),
		Cholesterol:   digitsToInt(obj["total_cholesterol"]),
		ServingSize:   stringField(obj, "serving_size", "servingSize"),
		Notes:         stringField(obj, "notes", "considerations"),
		Source:        SourceAggregateJSON,
	}, true
}

// macroInfoStrategy 行動版格式：{"macroInfo": {...}, "confidence": n, "analysis": "..."}
type macroInfoStrategy struct{}

func (macroInfoStrategy) Shape() Shape { return ShapeMacroInfo }

func (macroInfoStrategy) Parse(in *Input) (Record, bool) {
	obj := in.Object()
	if obj == nil {
		return Record{}, false
	}
	info, ok := obj["macroInfo"].(map[string]interface{})
	if !ok || !hasText(info, "foodName") || !hasAny(info, "calories") {
		return Record{}, false
	}

	foodName := stringField(info, "foodName")
	return Record{
		Description:   foodName,
		FoodName:      foodName,
		Calories:      numberField(info, "calories"),
		Protein:       numberField(info, "protein"),
		Carbohydrates: numberField(info, "carbs", "carbohydrates"),
		Fat:           numberField(info, "fat", "fats"),
		Fiber:         numberField(info, "fiber"),
		Sugar:         numberField(info, "sugar"),
		Sodium:        numberField(info, "sodium"),
		Cholesterol:   numberField(info, "cholesterol"),
		ServingSize:   stringField(info, "servingSize"),
		Confidence:    numberField(obj, "confidence"),
		Notes:         stringField(obj, "analysis"),
		Source:        SourceMacroInfoJSON,
	}, true
}

// simpleStrategy 標準格式：description/foodName + calories + 巨量營養素
type simpleStrategy struct{}

func (simpleStrategy) Shape() Shape { return ShapeSimple }

func (simpleStrategy) Parse(in *Input) (Record, bool) {
	obj := in.Object()
	if obj == nil || !hasText(obj, "description", "foodName") || !hasKey(obj, "calories") {
		return Record{}, false
	}

	return Record{
		Description:   stringField(obj, "description", "foodName"),
		FoodName:      stringField(obj, "foodName", "food_name"),
		Calories:      numberField(obj, "calories"),
		Protein:       numberField(obj, "protein"),
		Carbohydrates: numberField(obj, "carbohydrates", "carbs"),
		Fat:           numberField(obj, "fat", "fats"),
		Fiber:         numberField(obj, "fiber"),
		Sugar:         numberField(obj, "sugar"),
		Sodium:        numberField(obj, "sodium"),
		Cholesterol:   numberField(obj, "cholesterol"),
		ServingSize:   stringField(obj, "servingSize", "serving_size"),
		Confidence:    numberField(obj, "confidence"),
		Notes:         stringField(obj, "notes", "analysis"),
		Source:        SourceSimpleJSON,
	}, true
}
