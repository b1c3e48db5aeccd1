// Package synth generates labeled (user, hotel, rating) training examples
// from heuristic compatibility rules plus controlled noise. No real
// interaction log exists; this weak-supervision signal is the system's only
// source of training labels, which is a modeling assumption rather than
// ground truth.
package synth

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/adalundhe/roomrank/core/dataset"
	"github.com/adalundhe/roomrank/core/domain"
)

// Sub-score weights for the combined rating.
const (
	priceWeight   = 0.4
	typeWeight    = 0.3
	amenityWeight = 0.3

	// typeMismatchScore is the room-type sub-score when the representative
	// room is not the user's preferred type.
	typeMismatchScore = 0.3
)

// Config controls synthesis. A fixed seed makes the output reproducible.
type Config struct {
	NoiseStdDev float64
	Seed        int64
}

// Synthesizer produces synthetic interactions for every (user, hotel) pair.
type Synthesizer struct {
	noise   distuv.Normal
	lowBand distuv.Uniform
}

// New builds a synthesizer with a seeded random source shared by the noise
// and low-rating distributions.
func New(cfg Config) *Synthesizer {
	src := rand.NewSource(uint64(cfg.Seed))
	return &Synthesizer{
		noise:   distuv.Normal{Mu: 0, Sigma: cfg.NoiseStdDev, Src: src},
		lowBand: distuv.Uniform{Min: 1.0, Max: 2.0, Src: src},
	}
}

// Synthesize emits one interaction per (user, hotel) pair. Hotels with no
// satisfying room get a low rating drawn uniformly from [1,2]; otherwise a
// representative room drives price, type, and amenity sub-scores combined
// into a rating in [1,5] with Gaussian noise.
func (s *Synthesizer) Synthesize(snap *dataset.Snapshot) []domain.Interaction {
	interactions := make([]domain.Interaction, 0, len(snap.Users)*len(snap.Hotels))

	for ui := range snap.Users {
		user := &snap.Users[ui]

		for hi := range snap.Hotels {
			hotel := &snap.Hotels[hi]
			if len(hotel.Rooms) == 0 {
				continue
			}

			room, ok := representativeRoom(user, hotel)
			if !ok {
				interactions = append(interactions, domain.Interaction{
					UserID:  user.ID,
					HotelID: hotel.ID,
					Rating:  s.lowBand.Rand(),
				})
				continue
			}

			rating := 1.0 + 4.0*(priceWeight*priceScore(user, room)+
				typeWeight*typeScore(user, room)+
				amenityWeight*amenityScore(user, room))
			rating = clamp(rating+s.noise.Rand(), 1, 5)

			interactions = append(interactions, domain.Interaction{
				UserID:  user.ID,
				HotelID: hotel.ID,
				RoomID:  room.ID,
				HasRoom: true,
				Rating:  rating,
			})
		}
	}

	return interactions
}

// representativeRoom picks the room that stands in for the hotel in this
// user's label: a room within budget and capacity, preferring the user's
// room type. Returns false when no room satisfies both constraints.
func representativeRoom(user *domain.User, hotel *domain.Hotel) (*domain.Room, bool) {
	var fallback *domain.Room
	for i := range hotel.Rooms {
		room := &hotel.Rooms[i]
		if !user.PreferredBudget.Contains(room.PricePerNight) {
			continue
		}
		if room.Capacity < user.RequiredCapacity {
			continue
		}
		if room.Type == user.PreferredRoomType {
			return room, true
		}
		if fallback == nil {
			fallback = room
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}

// priceScore measures closeness to the budget midpoint, floored at 0.
func priceScore(user *domain.User, room *domain.Room) float64 {
	mid := user.PreferredBudget.Midpoint()
	if mid == 0 {
		return 0
	}
	score := 1.0 - abs(room.PricePerNight-mid)/mid
	if score < 0 {
		return 0
	}
	return score
}

func typeScore(user *domain.User, room *domain.Room) float64 {
	if room.Type == user.PreferredRoomType {
		return 1.0
	}
	return typeMismatchScore
}

// amenityScore is the matched fraction of preferred amenities, defined as 0
// when the user prefers none.
func amenityScore(user *domain.User, room *domain.Room) float64 {
	if len(user.PreferredAmenities) == 0 {
		return 0
	}
	return float64(room.MatchedAmenities(user.PreferredAmenities)) / float64(len(user.PreferredAmenities))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
