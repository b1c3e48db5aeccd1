// Package explain justifies a recommendation to an end user. Explanations
// are scored by independent additive rules, not by the learned model, so
// the reason text stays consistent with the rule layer even when the model
// is retrained. The learned base score is included for transparency only.
package explain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/adalundhe/roomrank/core/dataset"
	"github.com/adalundhe/roomrank/core/domain"
)

// ErrNotFound indicates an unknown user or hotel id.
var ErrNotFound = errors.New("explain: user or hotel not found")

// Additive rule weights. Capacity insufficiency dominates with a large
// negative weight so an undersized room sinks below every adequate one and
// the mismatch surfaces prominently.
const (
	scoreBudgetWithin    = 2.0
	scoreBudgetBelow     = 1.0
	scoreTypeMatch       = 2.0
	scoreCapacityOK      = 1.0
	scoreCapacityShort   = -3.0
	scorePerAmenityMatch = 0.5
)

// RoomMatch is one room's rule breakdown.
type RoomMatch struct {
	RoomID     int             `json:"room_id"`
	RoomName   string          `json:"room_name"`
	RoomType   domain.RoomType `json:"room_type"`
	Capacity   int             `json:"capacity"`
	Price      float64         `json:"price"`
	Score      float64         `json:"score"`
	Matches    []string        `json:"matches"`
	Mismatches []string        `json:"mismatches"`
}

// Explanation is the full justification payload for one hotel.
type Explanation struct {
	HotelID        int         `json:"hotel_id"`
	HotelName      string      `json:"hotel_name"`
	PredictedScore float64     `json:"predicted_score"`
	Text           string      `json:"explanation"`
	BestRoomID     int         `json:"best_room_id,omitempty"`
	BestRoomName   string      `json:"best_matching_room,omitempty"`
	Rooms          []RoomMatch `json:"room_matches"`
}

// Scorer supplies the learned base score for display. The explainer never
// uses it for ranking.
type Scorer interface {
	BaseScore(userID, hotelID int) (float64, bool)
}

// Explainer produces rule-based explanations over the current dataset
// snapshot.
type Explainer struct {
	store  *dataset.Store
	scorer Scorer
}

// New builds an explainer. scorer may be nil, in which case the predicted
// score is reported as 0.
func New(store *dataset.Store, scorer Scorer) *Explainer {
	return &Explainer{store: store, scorer: scorer}
}

// Explain scores every room of the hotel against the user's preferences
// and assembles the justification text from the best-matching room.
func (ex *Explainer) Explain(userID, hotelID int) (*Explanation, error) {
	snap, err := ex.store.Snapshot()
	if err != nil {
		return nil, err
	}

	user, ok := snap.UserByID(userID)
	if !ok {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	hotel, ok := snap.HotelByID(hotelID)
	if !ok {
		return nil, fmt.Errorf("%w: hotel %d", ErrNotFound, hotelID)
	}

	predicted := 0.0
	if ex.scorer != nil {
		if score, scored := ex.scorer.BaseScore(userID, hotelID); scored {
			predicted = score
		}
	}

	result := &Explanation{
		HotelID:        hotel.ID,
		HotelName:      hotel.Name,
		PredictedScore: predicted,
	}

	bestScore := 0.0
	bestIdx := -1
	for i := range hotel.Rooms {
		match := scoreRoom(user, &hotel.Rooms[i])
		result.Rooms = append(result.Rooms, match)
		// Strict comparison keeps the first-encountered room on ties.
		if match.Score > bestScore {
			bestScore = match.Score
			bestIdx = i
		}
	}

	if bestIdx >= 0 {
		best := result.Rooms[bestIdx]
		result.BestRoomID = best.RoomID
		result.BestRoomName = best.RoomName
		result.Text = assembleText(predicted, &best)
	} else {
		result.Text = "No room in this hotel fits your requirements."
	}

	sort.SliceStable(result.Rooms, func(i, j int) bool {
		return result.Rooms[i].Score > result.Rooms[j].Score
	})

	return result, nil
}

// scoreRoom applies the additive rules to one room.
func scoreRoom(user *domain.User, room *domain.Room) RoomMatch {
	match := RoomMatch{
		RoomID:   room.ID,
		RoomName: room.Name,
		RoomType: room.Type,
		Capacity: room.Capacity,
		Price:    room.PricePerNight,
	}

	budget := user.PreferredBudget
	switch {
	case budget.Contains(room.PricePerNight):
		match.Score += scoreBudgetWithin
		match.Matches = append(match.Matches,
			fmt.Sprintf("room price (%.0f) fits your budget (%.0f-%.0f)", room.PricePerNight, budget.Min, budget.Max))
	case room.PricePerNight < budget.Min:
		match.Score += scoreBudgetBelow
		match.Matches = append(match.Matches,
			fmt.Sprintf("room price (%.0f) is below your budget", room.PricePerNight))
	default:
		match.Mismatches = append(match.Mismatches,
			fmt.Sprintf("room price (%.0f) is above your budget (%.0f)", room.PricePerNight, budget.Max))
	}

	if room.Type == user.PreferredRoomType {
		match.Score += scoreTypeMatch
		match.Matches = append(match.Matches,
			fmt.Sprintf("your preferred room type: %s", user.PreferredRoomType))
	} else {
		match.Mismatches = append(match.Mismatches,
			fmt.Sprintf("different room type: %s (preferred: %s)", room.Type, user.PreferredRoomType))
	}

	if room.Capacity >= user.RequiredCapacity {
		match.Score += scoreCapacityOK
		match.Matches = append(match.Matches,
			fmt.Sprintf("sufficient capacity: sleeps %d (need %d)", room.Capacity, user.RequiredCapacity))
	} else {
		match.Score += scoreCapacityShort
		match.Mismatches = append(match.Mismatches,
			fmt.Sprintf("insufficient capacity: sleeps %d (need %d)", room.Capacity, user.RequiredCapacity))
	}

	for _, amenity := range user.PreferredAmenities {
		if room.HasAmenity(amenity) {
			match.Score += scorePerAmenityMatch
			match.Matches = append(match.Matches, fmt.Sprintf("%s available", amenity))
		} else {
			match.Mismatches = append(match.Mismatches, fmt.Sprintf("%s not available", amenity))
		}
	}

	return match
}

// assembleText builds the natural-language paragraph from the best room's
// breakdown.
func assembleText(predicted float64, best *RoomMatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This hotel was rated %.1f/5.0 for you. ", predicted)

	if len(best.Matches) > 0 {
		fmt.Fprintf(&b, "The best matching room is '%s' because: %s. ", best.RoomName, strings.Join(best.Matches, ", "))
	}
	if len(best.Mismatches) > 0 {
		fmt.Fprintf(&b, "Points to note: %s.", strings.Join(best.Mismatches, ", "))
	}
	return strings.TrimSpace(b.String())
}
