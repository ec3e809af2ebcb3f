package ingredients

import (
	"sort"
	"strings"

	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/sahilm/fuzzy"
)

type ingredientSource []models.Ingredient

func (s ingredientSource) String(i int) string { return s[i].Name }
func (s ingredientSource) Len() int            { return len(s) }

// Rank orders ingredients for a search query: names starting with the query
// first (alphabetically), then the rest by fuzzy match score.
func Rank(query string, items []models.Ingredient) []models.Ingredient {
	query = strings.TrimSpace(query)
	if query == "" || len(items) < 2 {
		return items
	}
	lower := strings.ToLower(query)

	var prefix, rest []models.Ingredient
	for _, it := range items {
		if strings.HasPrefix(strings.ToLower(it.Name), lower) {
			prefix = append(prefix, it)
		} else {
			rest = append(rest, it)
		}
	}
	sort.SliceStable(prefix, func(i, j int) bool {
		if prefix[i].Name != prefix[j].Name {
			return prefix[i].Name < prefix[j].Name
		}
		return prefix[i].MeasurementUnit < prefix[j].MeasurementUnit
	})

	ranked := make([]models.Ingredient, 0, len(items))
	ranked = append(ranked, prefix...)

	seen := make(map[int]bool, len(rest))
	for _, m := range fuzzy.FindFrom(query, ingredientSource(rest)) {
		ranked = append(ranked, rest[m.Index])
		seen[m.Index] = true
	}
	// substring hits the fuzzy matcher scored out
	for i, it := range rest {
		if !seen[i] {
			ranked = append(ranked, it)
		}
	}
	return ranked
}
