package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/roomrank/core/dataset"
	"github.com/adalundhe/roomrank/core/domain"
)

func explainFixture(t *testing.T) *dataset.Store {
	t.Helper()

	users := []domain.User{
		{
			ID:                 1,
			Name:               "Alice",
			PreferredBudget:    domain.Budget{Min: 1000, Max: 1500},
			PreferredRoomType:  domain.RoomTypeStandard,
			RequiredCapacity:   2,
			PreferredAmenities: []domain.Amenity{domain.AmenityWiFi, domain.AmenityTV},
		},
		{
			ID:                2,
			Name:              "Frank",
			PreferredBudget:   domain.Budget{Min: 100, Max: 200},
			PreferredRoomType: domain.RoomTypeDeluxe,
			RequiredCapacity:  8,
		},
	}
	hotels := []domain.Hotel{
		{
			ID:   1,
			Name: "Grand",
			Rooms: []domain.Room{
				{ID: 1, Name: "101", Type: domain.RoomTypeStandard, PricePerNight: 1200, Capacity: 2, HasWifi: true, HasTV: true, Status: domain.RoomStatusAvailable},
				{ID: 2, Name: "102", Type: domain.RoomTypeDeluxe, PricePerNight: 1800, Capacity: 1, Status: domain.RoomStatusAvailable},
			},
		},
	}

	store := dataset.NewStore()
	store.Publish(dataset.BuildSnapshot(users, hotels))
	return store
}

// fixedScorer returns a constant model score.
type fixedScorer struct{ score float64 }

func (s fixedScorer) BaseScore(userID, hotelID int) (float64, bool) {
	return s.score, true
}

func TestExplain(t *testing.T) {
	store := explainFixture(t)

	t.Run("unknown ids", func(t *testing.T) {
		ex := New(store, nil)
		_, err := ex.Explain(99, 1)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = ex.Explain(1, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("best room wins on the additive score", func(t *testing.T) {
		ex := New(store, fixedScorer{score: 4.2})
		result, err := ex.Explain(1, 1)
		require.NoError(t, err)

		assert.Equal(t, "Grand", result.HotelName)
		assert.Equal(t, 4.2, result.PredictedScore)
		// Room 101: within budget +2, type match +2, capacity +1, both
		// amenities +1. Room 102: over budget, wrong type, capacity short -3.
		assert.Equal(t, 1, result.BestRoomID)
		assert.Equal(t, "101", result.BestRoomName)
		require.Len(t, result.Rooms, 2)
		assert.InDelta(t, 6.0, result.Rooms[0].Score, 1e-12)
		assert.NotEmpty(t, result.Text)
	})

	t.Run("rooms are sorted by score descending", func(t *testing.T) {
		ex := New(store, nil)
		result, err := ex.Explain(1, 1)
		require.NoError(t, err)
		require.Len(t, result.Rooms, 2)
		assert.GreaterOrEqual(t, result.Rooms[0].Score, result.Rooms[1].Score)
	})

	t.Run("capacity shortfall is reported as a mismatch", func(t *testing.T) {
		ex := New(store, nil)
		result, err := ex.Explain(1, 1)
		require.NoError(t, err)

		var short *RoomMatch
		for i := range result.Rooms {
			if result.Rooms[i].RoomID == 2 {
				short = &result.Rooms[i]
			}
		}
		require.NotNil(t, short)
		assert.NotEmpty(t, short.Mismatches)
		assert.Less(t, short.Score, 0.0)
	})

	t.Run("no fitting room", func(t *testing.T) {
		ex := New(store, nil)
		result, err := ex.Explain(2, 1)
		require.NoError(t, err)

		assert.Zero(t, result.BestRoomID)
		assert.Equal(t, "No room in this hotel fits your requirements.", result.Text)
	})

	t.Run("works without a scorer", func(t *testing.T) {
		ex := New(store, nil)
		result, err := ex.Explain(1, 1)
		require.NoError(t, err)
		assert.Zero(t, result.PredictedScore)
		assert.Equal(t, 1, result.BestRoomID)
	})
}
