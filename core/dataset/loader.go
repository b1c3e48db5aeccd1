// Package dataset loads user and hotel records and packages them into
// immutable snapshots with derived feature matrices and id-to-index maps.
// Snapshots are rebuilt and atomically published on reload; readers never
// observe a half-built mapping.
package dataset

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/adalundhe/roomrank/core/domain"
)

// LoadUsers reads and validates the user record file. The first invalid
// record aborts the load; a dataset is never partially loaded.
func LoadUsers(path string) ([]domain.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read users %s: %w", path, err)
	}

	var users []domain.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("dataset: parse users %s: %w", path, err)
	}

	seen := make(map[int]struct{}, len(users))
	for i := range users {
		if err := users[i].Validate(); err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		if _, dup := seen[users[i].ID]; dup {
			return nil, fmt.Errorf("dataset: %w", &domain.DataError{
				Record: "user", ID: users[i].ID, Field: "id", Reason: "duplicate id",
			})
		}
		seen[users[i].ID] = struct{}{}
	}
	return users, nil
}

// LoadHotels reads and validates the hotel record file, including every
// owned room.
func LoadHotels(path string) ([]domain.Hotel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read hotels %s: %w", path, err)
	}

	var hotels []domain.Hotel
	if err := json.Unmarshal(data, &hotels); err != nil {
		return nil, fmt.Errorf("dataset: parse hotels %s: %w", path, err)
	}

	seen := make(map[int]struct{}, len(hotels))
	for i := range hotels {
		if err := hotels[i].Validate(); err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		if _, dup := seen[hotels[i].ID]; dup {
			return nil, fmt.Errorf("dataset: %w", &domain.DataError{
				Record: "hotel", ID: hotels[i].ID, Field: "id", Reason: "duplicate id",
			})
		}
		seen[hotels[i].ID] = struct{}{}
	}
	return hotels, nil
}
