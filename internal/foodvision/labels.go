package foodvision

import (
	"regexp"
	"strings"
)

// singularException lists labels whose trailing "s" is not a plural marker
// and must survive normalization untouched.
var singularException = map[string]bool{
	"glass":   true,
	"glasses": true,
	"fries":   true,
	"nuggets": true,
}

// NormalizeLabel lowercases a label, strips a leading article, and applies a
// naive singular form. Two detections with equal normalized labels are
// treated as the same kind of item by the duplicate and merge passes.
func NormalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, article := range []string{"a ", "an ", "the "} {
		if strings.HasPrefix(l, article) {
			l = strings.TrimSpace(l[len(article):])
			break
		}
	}
	if len(l) > 1 && strings.HasSuffix(l, "s") && !singularException[l] {
		l = l[:len(l)-1]
	}
	return l
}

// LabelsRelated reports whether two normalized labels describe the same
// item kind: equal, or one a substring of the other ("burger" vs
// "cheeseburger").
func LabelsRelated(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// MoreDescriptive reports whether label a carries more information than
// label b (longer normalized form, e.g. "beef burger" over "burger").
func MoreDescriptive(a, b string) bool {
	return len(NormalizeLabel(a)) > len(NormalizeLabel(b))
}

// containsAnyKeyword reports whether the lowercased label contains any of
// the given keywords as a substring.
func containsAnyKeyword(label string, keywords []string) bool {
	l := strings.ToLower(label)
	for _, kw := range keywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

// flatItemKeywords mark items with very low height-to-diameter ratios.
var flatItemKeywords = []string{"fries", "chips", "crisps", "potato", "flat"}

// drinkwareKeywords mark vessels with a fixed plausible height range.
var drinkwareKeywords = []string{"glass", "cup"}

// isFlatItem reports whether a label names a flat food item.
func isFlatItem(label string) bool {
	return containsAnyKeyword(label, flatItemKeywords)
}

// isDrinkware reports whether a label names a drinking vessel.
func isDrinkware(label string) bool {
	return containsAnyKeyword(label, drinkwareKeywords)
}

// isPlate reports whether a label names a plate.
func isPlate(label string) bool {
	return strings.Contains(strings.ToLower(label), "plate")
}

// typicalMaxVolumes caps per-category item volumes in milliliters. Keys are
// matched as substrings of the lowercased label; first match wins in the
// order below.
var typicalMaxVolumes = []struct {
	Keyword string
	MaxML   float64
}{
	{"cheeseburger", 500},
	{"hamburger", 500},
	{"burger", 500},
	{"sandwich", 500},
	{"french fries", 200},
	{"fries", 200},
	{"potato", 200},
	{"pizza", 1000},
	{"salad", 500},
	{"soup", 500},
	{"ice cream", 300},
	{"nugget", 100},
	{"chicken", 300},
}

// categoryMaxVolumeML returns the per-category volume cap for a label, or
// 0 when no category matches.
func categoryMaxVolumeML(label string) float64 {
	l := strings.ToLower(label)
	for _, entry := range typicalMaxVolumes {
		if strings.Contains(l, entry.Keyword) {
			return entry.MaxML
		}
	}
	return 0
}

// hallucinationPatterns flag label combinations that real meals essentially
// never contain; detectors backed by generative models occasionally invent
// them.
var hallucinationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`blueberry.*(cheeseburger|burger|sandwich|pizza|pasta|rice|noodle)`),
	regexp.MustCompile(`(cheeseburger|burger|sandwich|pizza|pasta|rice|noodle).*blueberry`),
	regexp.MustCompile(`strawberry.*(cheeseburger|burger|sandwich|pizza|pasta|rice|noodle)`),
	regexp.MustCompile(`(cheeseburger|burger|sandwich|pizza|pasta|rice|noodle).*strawberry`),
	regexp.MustCompile(`apple.*(cheeseburger|burger|sandwich|pizza|pasta|rice|noodle)`),
	regexp.MustCompile(`(cheeseburger|burger|sandwich|pizza|pasta|rice|noodle).*apple`),
	regexp.MustCompile(`ice cream.*(cheeseburger|burger|sandwich|pizza|pasta|rice|noodle|fries)`),
	regexp.MustCompile(`(cheeseburger|burger|sandwich|pizza|pasta|rice|noodle|fries).*ice cream`),
	regexp.MustCompile(`(fries|french fries).*(ice tea|tea|coffee|soda)`),
	regexp.MustCompile(`(ice tea|tea|coffee|soda).*(fries|french fries)`),
	regexp.MustCompile(`^.{40,}$`),
}

var colorWords = map[string]bool{
	"blue": true, "red": true, "green": true, "yellow": true,
	"orange": true, "purple": true, "pink": true,
}

// IsLikelyHallucination reports whether a food label looks like a detector
// hallucination rather than a real item.
func IsLikelyHallucination(label string) bool {
	l := strings.ToLower(label)
	for _, pat := range hallucinationPatterns {
		if pat.MatchString(l) {
			return true
		}
	}
	colorCount := 0
	for _, word := range strings.Fields(l) {
		if colorWords[word] {
			colorCount++
		}
	}
	return colorCount > 1
}

// isGenericLabel reports whether the label exactly matches a configured
// generic-object name (case-insensitive).
func (c *Config) isGenericLabel(label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, g := range c.GenericLabels {
		if l == g {
			return true
		}
	}
	return false
}

// IsNonFood reports whether the label matches the configured non-food
// keyword list (tableware, utensils, containers).
func (c *Config) IsNonFood(label string) bool {
	return containsAnyKeyword(label, c.NonFoodKeywords)
}

// ReferenceKind returns the calibration reference type ("plate", "bowl")
// named by the label, or "" when the label is not a reference object.
func (c *Config) ReferenceKind(label string) string {
	l := strings.ToLower(label)
	for _, ref := range c.ReferenceLabels {
		if strings.Contains(l, ref) {
			if ref == "bowl" {
				return "bowl"
			}
			return "plate"
		}
	}
	return ""
}
