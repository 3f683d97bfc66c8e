package foodvision

import (
	"context"
	"strings"
)

// Default figures for foods the knowledge base cannot resolve.
const (
	DefaultDensityGPerML   = 1.0
	DefaultCaloriesPer100G = 150.0
)

// StaticKnowledgeBase is an embedded NutritionLookup backed by a fixed
// table of common foods. It stands in for the external density/calorie
// service in offline runs and tests; matching is by token overlap with the
// query, longest matched entry first.
type StaticKnowledgeBase struct {
	entries []kbEntry
}

type kbEntry struct {
	name            string
	densityGPerML   float64
	caloriesPer100G float64
}

// NewStaticKnowledgeBase returns a knowledge base seeded with the built-in
// food table.
func NewStaticKnowledgeBase() *StaticKnowledgeBase {
	return &StaticKnowledgeBase{entries: builtinFoods}
}

// builtinFoods holds approximate densities (g/ml) and energy figures
// (kcal/100g) for foods the pipeline commonly encounters.
var builtinFoods = []kbEntry{
	{"cheeseburger", 0.6, 263},
	{"hamburger", 0.6, 254},
	{"burger", 0.6, 254},
	{"french fries", 0.45, 312},
	{"fries", 0.45, 312},
	{"chips", 0.45, 312},
	{"potato", 0.65, 87},
	{"pizza", 0.55, 266},
	{"pasta", 0.55, 158},
	{"spaghetti", 0.55, 158},
	{"noodle", 0.55, 138},
	{"rice", 0.75, 130},
	{"salad", 0.35, 20},
	{"soup", 1.0, 60},
	{"bread", 0.25, 265},
	{"toast", 0.25, 290},
	{"sandwich", 0.45, 250},
	{"chicken nugget", 0.55, 296},
	{"nuggets", 0.55, 296},
	{"chicken", 0.7, 239},
	{"ribs", 0.75, 290},
	{"rib", 0.75, 290},
	{"steak", 0.9, 271},
	{"beef", 0.9, 250},
	{"pork", 0.85, 242},
	{"fish", 0.8, 206},
	{"salmon", 0.8, 208},
	{"egg", 1.0, 155},
	{"omelette", 0.9, 154},
	{"pancake", 0.5, 227},
	{"waffle", 0.4, 291},
	{"ice cream", 0.55, 207},
	{"cake", 0.4, 350},
	{"cookie", 0.5, 480},
	{"donut", 0.4, 452},
	{"apple", 0.8, 52},
	{"banana", 0.9, 89},
	{"orange", 0.85, 47},
	{"strawberry", 0.6, 32},
	{"blueberry", 0.65, 57},
	{"grape", 0.65, 69},
	{"broccoli", 0.35, 34},
	{"carrot", 0.65, 41},
	{"corn", 0.7, 86},
	{"bean", 0.8, 127},
	{"cheese", 1.0, 402},
	{"yogurt", 1.0, 59},
	{"ketchup", 1.1, 112},
	{"sauce", 1.05, 100},
}

// Lookup resolves a food name by token overlap against the built-in table.
// The entry sharing the most tokens with the query wins; longer entry
// names break ties so "french fries" beats "fries".
func (kb *StaticKnowledgeBase) Lookup(_ context.Context, foodName string) (NutritionInfo, bool, error) {
	query := strings.ToLower(strings.TrimSpace(foodName))
	if query == "" {
		return NutritionInfo{}, false, nil
	}
	queryTokens := tokenize(query)

	var best *kbEntry
	bestScore := 0
	for i := range kb.entries {
		e := &kb.entries[i]
		score := 0
		if strings.Contains(query, e.name) || strings.Contains(e.name, query) {
			score = len(tokenize(e.name)) + 1
		} else {
			for _, tok := range tokenize(e.name) {
				for _, qt := range queryTokens {
					if tok == qt || NormalizeLabel(tok) == NormalizeLabel(qt) {
						score++
					}
				}
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && best != nil && len(e.name) > len(best.name)) {
			best = e
			bestScore = score
		}
	}
	if best == nil || bestScore == 0 {
		return NutritionInfo{}, false, nil
	}
	return NutritionInfo{
		MatchedName:     best.name,
		DensityGPerML:   best.densityGPerML,
		CaloriesPer100G: best.caloriesPer100G,
	}, true, nil
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
