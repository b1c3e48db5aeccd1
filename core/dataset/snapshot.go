package dataset

import (
	"github.com/adalundhe/roomrank/core/domain"
	"github.com/adalundhe/roomrank/core/features"
)

// Snapshot is an immutable view of the loaded dataset: the raw records, the
// normalized feature matrices, and the id-to-index maps built once at load
// time. Feature positions are stable for the snapshot's lifetime, so the
// mapping stays consistent between training and inference.
type Snapshot struct {
	Users  []domain.User
	Hotels []domain.Hotel

	UserFeatures  [][]float64
	HotelFeatures [][]float64

	UserNorm  *features.Normalizer
	HotelNorm *features.Normalizer

	// Version distinguishes snapshots for cache keying. Assigned by the
	// Store at publish time; 0 for snapshots built directly.
	Version uint64

	userIndex  map[int]int
	hotelIndex map[int]int

	userResolvers  []resolver
	hotelResolvers []resolver
}

// resolver is one strategy for turning an entity id into a feature-matrix
// position. Strategies are tried in order; the first hit wins.
type resolver func(id int) (int, bool)

// BuildSnapshot derives feature matrices and index maps from the records.
func BuildSnapshot(users []domain.User, hotels []domain.Hotel) *Snapshot {
	s := &Snapshot{
		Users:      users,
		Hotels:     hotels,
		userIndex:  make(map[int]int, len(users)),
		hotelIndex: make(map[int]int, len(hotels)),
	}

	for i := range users {
		s.userIndex[users[i].ID] = i
	}
	for i := range hotels {
		s.hotelIndex[hotels[i].ID] = i
	}

	s.UserFeatures, s.UserNorm = features.ExtractUserFeatures(users)
	s.HotelFeatures, s.HotelNorm = features.ExtractHotelFeatures(hotels)

	// Primary lookup by id, secondary fallback by positional index. The
	// fallback covers datasets whose ids are already dense 1-based
	// positions but were reassigned upstream.
	s.userResolvers = []resolver{
		func(id int) (int, bool) { idx, ok := s.userIndex[id]; return idx, ok },
		func(id int) (int, bool) {
			if id >= 1 && id <= len(s.Users) {
				return id - 1, true
			}
			return 0, false
		},
	}
	s.hotelResolvers = []resolver{
		func(id int) (int, bool) { idx, ok := s.hotelIndex[id]; return idx, ok },
		func(id int) (int, bool) {
			if id >= 1 && id <= len(s.Hotels) {
				return id - 1, true
			}
			return 0, false
		},
	}

	return s
}

// Load builds a snapshot straight from record files.
func Load(usersFile, hotelsFile string) (*Snapshot, error) {
	users, err := LoadUsers(usersFile)
	if err != nil {
		return nil, err
	}
	hotels, err := LoadHotels(hotelsFile)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(users, hotels), nil
}

// UserIndex resolves a user id to its feature-matrix position.
func (s *Snapshot) UserIndex(id int) (int, bool) {
	for _, resolve := range s.userResolvers {
		if idx, ok := resolve(id); ok {
			return idx, true
		}
	}
	return 0, false
}

// HotelIndex resolves a hotel id to its feature-matrix position.
func (s *Snapshot) HotelIndex(id int) (int, bool) {
	for _, resolve := range s.hotelResolvers {
		if idx, ok := resolve(id); ok {
			return idx, true
		}
	}
	return 0, false
}

// UserByID returns the user record for an id, if known.
func (s *Snapshot) UserByID(id int) (*domain.User, bool) {
	idx, ok := s.UserIndex(id)
	if !ok {
		return nil, false
	}
	return &s.Users[idx], true
}

// HotelByID returns the hotel record for an id, if known.
func (s *Snapshot) HotelByID(id int) (*domain.Hotel, bool) {
	idx, ok := s.HotelIndex(id)
	if !ok {
		return nil, false
	}
	return &s.Hotels[idx], true
}

// NumUsers returns the user population size.
func (s *Snapshot) NumUsers() int { return len(s.Users) }

// NumHotels returns the hotel population size.
func (s *Snapshot) NumHotels() int { return len(s.Hotels) }
