package matching

import (
	"fmt"
	"strings"

	"pricing-service/internal/models"
)

// Weights tunes the scoring strategies and confidence tiers. Zero
// values fall back to defaults so a partially configured engine still
// behaves sensibly; a negative bonus weight disables that strategy.
type Weights struct {
	BrandBonus      float64
	TokenWeight     float64
	HighThreshold   float64
	MediumThreshold float64
	AcceptanceFloor float64
}

// DefaultWeights returns the standard scoring configuration
func DefaultWeights() Weights {
	return Weights{
		BrandBonus:      0.2,
		TokenWeight:     0.3,
		HighThreshold:   0.7,
		MediumThreshold: 0.5,
		AcceptanceFloor: 0.55,
	}
}

// Engine scores merchant products against competitor catalog entries
type Engine struct {
	weights Weights
}

// NewEngine creates a matching engine, filling unset weights with
// defaults. A negative BrandBonus or TokenWeight disables that strategy
// outright (clamped to zero); thresholds must be positive and fall back
// to their defaults otherwise.
func NewEngine(weights Weights) *Engine {
	defaults := DefaultWeights()
	switch {
	case weights.BrandBonus < 0:
		weights.BrandBonus = 0
	case weights.BrandBonus == 0:
		weights.BrandBonus = defaults.BrandBonus
	}
	switch {
	case weights.TokenWeight < 0:
		weights.TokenWeight = 0
	case weights.TokenWeight == 0:
		weights.TokenWeight = defaults.TokenWeight
	}
	if weights.HighThreshold <= 0 {
		weights.HighThreshold = defaults.HighThreshold
	}
	if weights.MediumThreshold <= 0 {
		weights.MediumThreshold = defaults.MediumThreshold
	}
	if weights.AcceptanceFloor <= 0 {
		weights.AcceptanceFloor = defaults.AcceptanceFloor
	}
	return &Engine{weights: weights}
}

// Weights returns the engine's effective configuration
func (e *Engine) Weights() Weights {
	return e.weights
}

// Result is the engine's verdict for one product against one candidate set
type Result struct {
	Candidate *models.CompetitorProduct
	Score     float64
	MatchType models.MatchType
	Reason    string
}

// FindBestMatch scores every candidate against the product and returns
// the best one if it clears the acceptance floor. An exact SKU match
// wins outright with score 1.0. Ties keep the first-seen candidate.
func (e *Engine) FindBestMatch(product *models.Product, candidates []models.CompetitorProduct) (*Result, bool) {
	var best *Result

	productSKU := strings.ToLower(strings.TrimSpace(product.SKU))
	productName := models.CleanName(product.Name)

	for i := range candidates {
		candidate := &candidates[i]

		if productSKU != "" && candidate.SKU != nil {
			candidateSKU := strings.ToLower(strings.TrimSpace(*candidate.SKU))
			if candidateSKU != "" && candidateSKU == productSKU {
				return &Result{
					Candidate: candidate,
					Score:     1.0,
					MatchType: models.MatchTypeSKU,
					Reason:    fmt.Sprintf("SKU Match (%s)", product.SKU),
				}, true
			}
		}

		nameScore := DiceSimilarity(productName, candidate.Name)
		if candidate.Description != nil {
			if descScore := DiceSimilarity(productName, *candidate.Description); descScore > nameScore {
				nameScore = descScore
			}
		}

		score := nameScore + e.brandBonus(product, candidate) + e.tokenScore(productName, candidate)

		if best == nil || score > best.Score {
			best = &Result{
				Candidate: candidate,
				Score:     score,
				Reason:    fmt.Sprintf("Name Sim: %.2f + Brand/Token Bonus", nameScore),
			}
		}
	}

	if best == nil || best.Score < e.weights.AcceptanceFloor {
		return nil, false
	}

	switch {
	case best.Score >= e.weights.HighThreshold:
		best.MatchType = models.MatchTypeHigh
	case best.Score >= e.weights.MediumThreshold:
		best.MatchType = models.MatchTypeMedium
	default:
		best.MatchType = models.MatchTypeLow
	}
	return best, true
}

// brandBonus rewards matching brands: either both sides carry the same
// brand, or the merchant's brand appears in the candidate's title
func (e *Engine) brandBonus(product *models.Product, candidate *models.CompetitorProduct) float64 {
	if product.Brand == nil {
		return 0
	}
	brand := strings.ToLower(strings.TrimSpace(*product.Brand))
	if brand == "" {
		return 0
	}
	if candidate.Brand != nil && strings.ToLower(strings.TrimSpace(*candidate.Brand)) == brand {
		return e.weights.BrandBonus
	}
	if strings.Contains(strings.ToLower(candidate.Name), brand) {
		return e.weights.BrandBonus
	}
	return 0
}

// tokenScore measures how many significant product-name tokens (longer
// than three characters) appear in the candidate's title and
// description, scaled by the token weight
func (e *Engine) tokenScore(productName string, candidate *models.CompetitorProduct) float64 {
	var tokens []string
	for _, t := range strings.Fields(productName) {
		if len([]rune(t)) > 3 {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return 0
	}

	haystack := strings.ToLower(candidate.Name)
	if candidate.Description != nil {
		haystack += " " + strings.ToLower(*candidate.Description)
	}

	matched := 0
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens)) * e.weights.TokenWeight
}

// DiceSimilarity computes the Sorensen-Dice coefficient over character
// bigrams of the two strings, ignoring case and whitespace. Returns a
// value in [0, 1].
func DiceSimilarity(a, b string) float64 {
	a = stripSpaces(strings.ToLower(a))
	b = stripSpaces(strings.ToLower(b))

	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[string]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[string(ra[i:i+2])]++
	}

	intersection := 0
	for i := 0; i < len(rb)-1; i++ {
		bg := string(rb[i : i+2])
		if bigrams[bg] > 0 {
			bigrams[bg]--
			intersection++
		}
	}

	return 2.0 * float64(intersection) / float64(len(ra)+len(rb)-2)
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
