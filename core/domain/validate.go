package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnknownUser indicates a user id that is not in the loaded dataset.
	// Inference treats this as a normal "no data yet" condition.
	ErrUnknownUser = errors.New("unknown user id")

	// ErrUnknownHotel indicates a hotel id that is not in the loaded dataset.
	ErrUnknownHotel = errors.New("unknown hotel id")
)

// DataError reports a malformed or missing field in a user or hotel record.
// Dataset loading fails fast on the first DataError; a dataset is never
// partially loaded.
type DataError struct {
	Record string
	ID     int
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("domain: invalid %s record %d: field %q: %s", e.Record, e.ID, e.Field, e.Reason)
}

// =============================================================================
// Record validation
// =============================================================================

// Validate checks the user record's required fields and invariants.
func (u *User) Validate() error {
	if u.ID <= 0 {
		return &DataError{Record: "user", ID: u.ID, Field: "id", Reason: "must be a positive integer"}
	}
	if u.PreferredBudget.Min < 0 {
		return &DataError{Record: "user", ID: u.ID, Field: "preferredBudget.min", Reason: "must be non-negative"}
	}
	if u.PreferredBudget.Min > u.PreferredBudget.Max {
		return &DataError{Record: "user", ID: u.ID, Field: "preferredBudget", Reason: "min exceeds max"}
	}
	if !u.PreferredRoomType.Valid() {
		return &DataError{Record: "user", ID: u.ID, Field: "preferredRoomType", Reason: fmt.Sprintf("unknown room type %q", u.PreferredRoomType)}
	}
	if u.RequiredCapacity <= 0 {
		return &DataError{Record: "user", ID: u.ID, Field: "requiredCapacity", Reason: "must be a positive integer"}
	}
	for _, a := range u.PreferredAmenities {
		if !a.Valid() {
			return &DataError{Record: "user", ID: u.ID, Field: "preferredAmenities", Reason: fmt.Sprintf("unknown amenity %q", a)}
		}
	}
	return nil
}

// Validate checks the hotel record and every room it owns.
func (h *Hotel) Validate() error {
	if h.ID <= 0 {
		return &DataError{Record: "hotel", ID: h.ID, Field: "id", Reason: "must be a positive integer"}
	}
	if h.Name == "" {
		return &DataError{Record: "hotel", ID: h.ID, Field: "name", Reason: "must not be empty"}
	}
	seen := make(map[int]struct{}, len(h.Rooms))
	for i := range h.Rooms {
		room := &h.Rooms[i]
		if err := room.validate(h.ID); err != nil {
			return err
		}
		if _, dup := seen[room.ID]; dup {
			return &DataError{Record: "hotel", ID: h.ID, Field: "rooms", Reason: fmt.Sprintf("duplicate room id %d", room.ID)}
		}
		seen[room.ID] = struct{}{}
	}
	return nil
}

func (r *Room) validate(hotelID int) error {
	if r.ID <= 0 {
		return &DataError{Record: "hotel", ID: hotelID, Field: "rooms.id", Reason: "must be a positive integer"}
	}
	if !r.Type.Valid() {
		return &DataError{Record: "hotel", ID: hotelID, Field: "rooms.type", Reason: fmt.Sprintf("unknown room type %q", r.Type)}
	}
	if r.PricePerNight < 0 {
		return &DataError{Record: "hotel", ID: hotelID, Field: "rooms.pricePerNight", Reason: "must be non-negative"}
	}
	if r.Capacity <= 0 {
		return &DataError{Record: "hotel", ID: hotelID, Field: "rooms.capacity", Reason: "must be a positive integer"}
	}
	if r.Status == "" {
		return &DataError{Record: "hotel", ID: hotelID, Field: "rooms.status", Reason: "must not be empty"}
	}
	return nil
}
