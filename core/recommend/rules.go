// Package recommend evaluates the learned rating model per candidate room,
// applies deterministic business-rule adjustments on top of the learned
// score, and ranks the result. The rule layer is a heuristic re-ranking,
// not an optimizer.
package recommend

import (
	"fmt"

	"github.com/adalundhe/roomrank/core/domain"
)

// Budget multiplier tiers. An exact budget fit earns a bonus; the further a
// price strays from the bracket, the harder the penalty.
const (
	budgetExactBonus    = 1.1
	budgetSlightlyUnder = 0.95
	budgetWellUnder     = 0.9
	budgetSlightlyOver  = 0.7
	budgetWellOver      = 0.5

	// budgetUnderBand and budgetOverBand bound the "slightly" tiers.
	budgetUnderBand = 0.8
	budgetOverBand  = 1.2
)

// Room-type multiplier tiers.
const (
	typeMatchBonus      = 1.2
	typeMismatchPenalty = 0.8
)

// Amenity multiplier: 0.8 at zero overlap ramping to 1.2 at full overlap.
const (
	amenityBase = 0.8
	amenitySpan = 0.4
)

// Rating bounds for the final clamped score.
const (
	minRating = 1.0
	maxRating = 5.0
)

// budgetMultiplier returns the tier for a room price against the user's
// budget, with a trace line describing the tier.
func budgetMultiplier(price float64, b domain.Budget) (float64, string) {
	switch {
	case price < b.Min*budgetUnderBand:
		return budgetWellUnder, fmt.Sprintf("well below budget (%.0f < %.0f): x%.2f", price, b.Min, budgetWellUnder)
	case price > b.Max*budgetOverBand:
		return budgetWellOver, fmt.Sprintf("well above budget (%.0f > %.0f): x%.2f", price, b.Max, budgetWellOver)
	case price < b.Min:
		return budgetSlightlyUnder, fmt.Sprintf("slightly below budget: x%.2f", budgetSlightlyUnder)
	case price > b.Max:
		return budgetSlightlyOver, fmt.Sprintf("slightly above budget: x%.2f", budgetSlightlyOver)
	default:
		return budgetExactBonus, fmt.Sprintf("within budget: x%.2f", budgetExactBonus)
	}
}

// typeMultiplier rewards an exact room-type match.
func typeMultiplier(roomType, preferred domain.RoomType) (float64, string) {
	if roomType == preferred {
		return typeMatchBonus, fmt.Sprintf("preferred room type: x%.2f", typeMatchBonus)
	}
	return typeMismatchPenalty, fmt.Sprintf("different room type: x%.2f", typeMismatchPenalty)
}

// amenityMultiplier scales with the matched fraction of preferred
// amenities. It does not apply when the user prefers none.
func amenityMultiplier(room *domain.Room, preferred []domain.Amenity) (float64, string, bool) {
	if len(preferred) == 0 {
		return 1.0, "", false
	}
	matched := room.MatchedAmenities(preferred)
	factor := amenityBase + amenitySpan*float64(matched)/float64(len(preferred))
	return factor, fmt.Sprintf("amenity match (%d/%d): x%.2f", matched, len(preferred), factor), true
}

func clampRating(v float64) float64 {
	if v < minRating {
		return minRating
	}
	if v > maxRating {
		return maxRating
	}
	return v
}
