package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/roomrank/core/domain"
)

const usersJSON = `[
  {"id": 1, "name": "Alice", "preferredBudget": {"min": 1000, "max": 1500},
   "preferredRoomType": "STANDARD", "requiredCapacity": 2,
   "preferredAmenities": ["WiFi"]},
  {"id": 2, "name": "Bob", "preferredBudget": {"min": 2000, "max": 3000},
   "preferredRoomType": "DELUXE", "requiredCapacity": 4,
   "preferredAmenities": ["WiFi", "TV", "Minibar"]}
]`

const hotelsJSON = `[
  {"id": 1, "name": "Grand", "city": "Oslo", "address": "Main St 1",
   "rooms": [
     {"id": 1, "name": "101", "type": "STANDARD", "pricePerNight": 1200,
      "capacity": 2, "hasWifi": true, "hasTV": true, "status": "AVAILABLE"},
     {"id": 2, "name": "201", "type": "DELUXE", "pricePerNight": 2500,
      "capacity": 4, "hasWifi": true, "hasTV": true, "hasMinibar": true,
      "status": "AVAILABLE"}
   ]}
]`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadUsers(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		users, err := LoadUsers(writeFixture(t, "users.json", usersJSON))
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "Alice", users[0].Name)
		assert.Equal(t, domain.RoomTypeDeluxe, users[1].PreferredRoomType)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadUsers(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadUsers(writeFixture(t, "users.json", `{"not": "a list"}`))
		assert.Error(t, err)
	})

	t.Run("invalid record fails fast", func(t *testing.T) {
		bad := `[{"id": 1, "preferredBudget": {"min": 900, "max": 500},
		  "preferredRoomType": "STANDARD", "requiredCapacity": 2}]`
		_, err := LoadUsers(writeFixture(t, "users.json", bad))
		var dataErr *domain.DataError
		assert.ErrorAs(t, err, &dataErr)
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		dup := `[
		  {"id": 1, "preferredBudget": {"min": 100, "max": 200}, "preferredRoomType": "STANDARD", "requiredCapacity": 1},
		  {"id": 1, "preferredBudget": {"min": 100, "max": 200}, "preferredRoomType": "STANDARD", "requiredCapacity": 1}
		]`
		_, err := LoadUsers(writeFixture(t, "users.json", dup))
		assert.Error(t, err)
	})
}

func TestLoadHotels(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		hotels, err := LoadHotels(writeFixture(t, "hotels.json", hotelsJSON))
		require.NoError(t, err)
		require.Len(t, hotels, 1)
		assert.Len(t, hotels[0].Rooms, 2)
		assert.True(t, hotels[0].Rooms[0].HasWifi)
	})

	t.Run("invalid room fails the hotel", func(t *testing.T) {
		bad := `[{"id": 1, "name": "Grand", "rooms": [
		  {"id": 1, "type": "IGLOO", "pricePerNight": 100, "capacity": 2, "status": "AVAILABLE"}
		]}]`
		_, err := LoadHotels(writeFixture(t, "hotels.json", bad))
		assert.Error(t, err)
	})
}

func TestSnapshot(t *testing.T) {
	users, err := LoadUsers(writeFixture(t, "users.json", usersJSON))
	require.NoError(t, err)
	hotels, err := LoadHotels(writeFixture(t, "hotels.json", hotelsJSON))
	require.NoError(t, err)

	snap := BuildSnapshot(users, hotels)

	t.Run("feature matrices align with records", func(t *testing.T) {
		assert.Len(t, snap.UserFeatures, snap.NumUsers())
		assert.Len(t, snap.HotelFeatures, snap.NumHotels())
	})

	t.Run("id lookup", func(t *testing.T) {
		idx, ok := snap.UserIndex(2)
		require.True(t, ok)
		assert.Equal(t, 1, idx)

		user, ok := snap.UserByID(1)
		require.True(t, ok)
		assert.Equal(t, "Alice", user.Name)

		hotel, ok := snap.HotelByID(1)
		require.True(t, ok)
		assert.Equal(t, "Grand", hotel.Name)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, ok := snap.UserIndex(99)
		assert.False(t, ok)
		_, ok = snap.HotelIndex(99)
		assert.False(t, ok)
	})

	t.Run("positional fallback for dense renumbered ids", func(t *testing.T) {
		// Records whose ids start above the dense range still resolve
		// positionally for 1-based lookups.
		shifted := []domain.User{
			{ID: 100, PreferredBudget: domain.Budget{Min: 1, Max: 2}, PreferredRoomType: domain.RoomTypeStandard, RequiredCapacity: 1},
			{ID: 200, PreferredBudget: domain.Budget{Min: 1, Max: 2}, PreferredRoomType: domain.RoomTypeStandard, RequiredCapacity: 1},
		}
		s := BuildSnapshot(shifted, nil)

		idx, ok := s.UserIndex(100)
		require.True(t, ok)
		assert.Equal(t, 0, idx, "map lookup wins")

		idx, ok = s.UserIndex(2)
		require.True(t, ok)
		assert.Equal(t, 1, idx, "positional fallback")
	})
}

func TestStore(t *testing.T) {
	usersFile := writeFixture(t, "users.json", usersJSON)
	hotelsFile := writeFixture(t, "hotels.json", hotelsJSON)

	t.Run("empty store errors", func(t *testing.T) {
		st := NewStore()
		_, err := st.Snapshot()
		assert.ErrorIs(t, err, ErrNoSnapshot)
	})

	t.Run("reload publishes increasing versions", func(t *testing.T) {
		st := NewStore()

		first, err := st.Reload(usersFile, hotelsFile)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), first.Version)

		second, err := st.Reload(usersFile, hotelsFile)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), second.Version)

		current, err := st.Snapshot()
		require.NoError(t, err)
		assert.Same(t, second, current)
	})

	t.Run("failed reload keeps previous snapshot", func(t *testing.T) {
		st := NewStore()
		published, err := st.Reload(usersFile, hotelsFile)
		require.NoError(t, err)

		_, err = st.Reload(filepath.Join(t.TempDir(), "missing.json"), hotelsFile)
		require.Error(t, err)

		current, err := st.Snapshot()
		require.NoError(t, err)
		assert.Same(t, published, current)
	})
}
