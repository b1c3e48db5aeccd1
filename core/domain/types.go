// Package domain defines the core record types for the recommendation
// engine: users, hotels, rooms, synthetic interactions, and the
// recommendation payloads produced at inference time.
package domain

// =============================================================================
// Enums
// =============================================================================

// RoomType is the room category a hotel offers and a user prefers.
type RoomType string

const (
	RoomTypeStandard RoomType = "STANDARD"
	RoomTypeDeluxe   RoomType = "DELUXE"
)

// Valid reports whether the room type is one of the known categories.
func (t RoomType) Valid() bool {
	return t == RoomTypeStandard || t == RoomTypeDeluxe
}

// RoomStatus is the availability state of a room. Only AVAILABLE rooms are
// ever recommended; every other status is treated as unavailable.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "AVAILABLE"
	RoomStatusOccupied    RoomStatus = "OCCUPIED"
	RoomStatusMaintenance RoomStatus = "MAINTENANCE"
)

// Amenity is a room feature a user can ask for.
type Amenity string

const (
	AmenityWiFi    Amenity = "WiFi"
	AmenityTV      Amenity = "TV"
	AmenityBalcony Amenity = "Balcony"
	AmenityMinibar Amenity = "Minibar"
)

// Amenities lists every known amenity in a stable order.
var Amenities = []Amenity{AmenityWiFi, AmenityTV, AmenityBalcony, AmenityMinibar}

// Valid reports whether the amenity is one of the known kinds.
func (a Amenity) Valid() bool {
	for _, known := range Amenities {
		if a == known {
			return true
		}
	}
	return false
}

// =============================================================================
// Records
// =============================================================================

// Budget is a per-night price range a user is willing to pay.
type Budget struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Midpoint returns the center of the budget range.
func (b Budget) Midpoint() float64 {
	return (b.Min + b.Max) / 2
}

// Contains reports whether price falls inside the range, inclusive.
func (b Budget) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// User is a guest profile. Records are immutable once loaded into a
// dataset snapshot.
type User struct {
	ID                 int       `json:"id"`
	Name               string    `json:"name"`
	PreferredBudget    Budget    `json:"preferredBudget"`
	PreferredRoomType  RoomType  `json:"preferredRoomType"`
	RequiredCapacity   int       `json:"requiredCapacity"`
	PreferredAmenities []Amenity `json:"preferredAmenities"`
}

// WantsAmenity reports whether the user listed the amenity as preferred.
func (u *User) WantsAmenity(a Amenity) bool {
	for _, want := range u.PreferredAmenities {
		if want == a {
			return true
		}
	}
	return false
}

// Room is a single bookable room. Room IDs are unique within their hotel,
// not globally.
type Room struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Type          RoomType   `json:"type"`
	PricePerNight float64    `json:"pricePerNight"`
	Capacity      int        `json:"capacity"`
	HasWifi       bool       `json:"hasWifi"`
	HasTV         bool       `json:"hasTV"`
	HasBalcony    bool       `json:"hasBalcony"`
	HasMinibar    bool       `json:"hasMinibar"`
	Status        RoomStatus `json:"status"`
}

// HasAmenity reports whether the room provides the amenity.
func (r *Room) HasAmenity(a Amenity) bool {
	switch a {
	case AmenityWiFi:
		return r.HasWifi
	case AmenityTV:
		return r.HasTV
	case AmenityBalcony:
		return r.HasBalcony
	case AmenityMinibar:
		return r.HasMinibar
	}
	return false
}

// MatchedAmenities counts how many of the preferred amenities the room has.
func (r *Room) MatchedAmenities(preferred []Amenity) int {
	matched := 0
	for _, a := range preferred {
		if r.HasAmenity(a) {
			matched++
		}
	}
	return matched
}

// Available reports whether the room can be booked.
func (r *Room) Available() bool {
	return r.Status == RoomStatusAvailable
}

// Hotel owns an unordered collection of rooms. Room order is irrelevant for
// scoring.
type Hotel struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address"`
	Rooms   []Room `json:"rooms"`
}

// =============================================================================
// Training and inference payloads
// =============================================================================

// Interaction is a synthetic (user, hotel, rating) training label. It is
// regenerated each training run and never persisted as ground truth. The
// rating heuristic is the system's only supervision signal; there is no real
// feedback loop behind it.
type Interaction struct {
	UserID  int
	HotelID int
	RoomID  int
	HasRoom bool
	Rating  float64
}

// AmenityFlags mirrors a room's amenity booleans in a recommendation payload.
type AmenityFlags struct {
	Wifi    bool `json:"wifi"`
	TV      bool `json:"tv"`
	Balcony bool `json:"balcony"`
	Minibar bool `json:"minibar"`
}

// Recommendation is one ranked room for a user. PredictedRating is the
// learned score after rule adjustments, clamped to [1,5]; BaseScore is the
// raw model output for the hotel.
type Recommendation struct {
	HotelID         int          `json:"hotel_id"`
	HotelName       string       `json:"hotel_name"`
	RoomID          int          `json:"room_id"`
	RoomName        string       `json:"room_name"`
	RoomType        RoomType     `json:"room_type"`
	Price           float64      `json:"price"`
	City            string       `json:"city"`
	Address         string       `json:"address"`
	Capacity        int          `json:"capacity"`
	PredictedRating float64      `json:"predicted_rating"`
	BaseScore       float64      `json:"base_score"`
	Amenities       AmenityFlags `json:"amenities"`
	Adjustments     []string     `json:"score_details,omitempty"`
	Reason          string       `json:"reason,omitempty"`
}
