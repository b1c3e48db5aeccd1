// Package features derives fixed-size normalized numeric vectors from user
// and hotel records. Vectors are computed once per dataset snapshot; the
// normalization parameters fitted at that moment are reused for every
// subsequent query against the snapshot.
package features

import (
	"github.com/adalundhe/roomrank/core/domain"
)

// Feature vector widths. Stable for the lifetime of a loaded dataset; a
// trained checkpoint records them and refuses to load against a mismatch.
const (
	NumUserFeatures  = 12
	NumHotelFeatures = 14
)

// =============================================================================
// User features
// =============================================================================

// UserVector builds the raw (unnormalized) feature vector for a user:
// budget min/max/average/range, one-hot room type, required capacity, one
// flag per amenity, and the preferred amenity count.
func UserVector(u *domain.User) []float64 {
	minBudget := u.PreferredBudget.Min
	maxBudget := u.PreferredBudget.Max

	isDeluxe := 0.0
	if u.PreferredRoomType == domain.RoomTypeDeluxe {
		isDeluxe = 1.0
	}
	isStandard := 0.0
	if u.PreferredRoomType == domain.RoomTypeStandard {
		isStandard = 1.0
	}

	boolToFloat := func(b bool) float64 {
		if b {
			return 1.0
		}
		return 0.0
	}

	return []float64{
		minBudget,
		maxBudget,
		(minBudget + maxBudget) / 2,
		maxBudget - minBudget,
		isDeluxe,
		isStandard,
		float64(u.RequiredCapacity),
		boolToFloat(u.WantsAmenity(domain.AmenityWiFi)),
		boolToFloat(u.WantsAmenity(domain.AmenityTV)),
		boolToFloat(u.WantsAmenity(domain.AmenityBalcony)),
		boolToFloat(u.WantsAmenity(domain.AmenityMinibar)),
		float64(len(u.PreferredAmenities)),
	}
}

// =============================================================================
// Hotel features
// =============================================================================

// HotelVector builds the raw feature vector for a hotel, aggregated over its
// rooms: price statistics, room-type fractions, capacity statistics, amenity
// fractions, and the summed amenity fraction. A hotel with zero rooms yields
// an all-zero vector; that is a defined degenerate case, not an error.
func HotelVector(h *domain.Hotel) []float64 {
	n := len(h.Rooms)
	if n == 0 {
		return make([]float64, NumHotelFeatures)
	}

	var (
		priceSum, priceMin, priceMax float64
		capSum                       float64
		capMin, capMax               int
		deluxe, standard             int
		wifi, tv, balcony, minibar   int
	)

	priceMin = h.Rooms[0].PricePerNight
	priceMax = priceMin
	capMin = h.Rooms[0].Capacity
	capMax = capMin

	for i := range h.Rooms {
		room := &h.Rooms[i]

		priceSum += room.PricePerNight
		if room.PricePerNight < priceMin {
			priceMin = room.PricePerNight
		}
		if room.PricePerNight > priceMax {
			priceMax = room.PricePerNight
		}

		capSum += float64(room.Capacity)
		if room.Capacity < capMin {
			capMin = room.Capacity
		}
		if room.Capacity > capMax {
			capMax = room.Capacity
		}

		switch room.Type {
		case domain.RoomTypeDeluxe:
			deluxe++
		case domain.RoomTypeStandard:
			standard++
		}

		if room.HasWifi {
			wifi++
		}
		if room.HasTV {
			tv++
		}
		if room.HasBalcony {
			balcony++
		}
		if room.HasMinibar {
			minibar++
		}
	}

	count := float64(n)
	wifiRatio := float64(wifi) / count
	tvRatio := float64(tv) / count
	balconyRatio := float64(balcony) / count
	minibarRatio := float64(minibar) / count

	return []float64{
		priceSum / count,
		priceMin,
		priceMax,
		priceMax - priceMin,
		float64(deluxe) / count,
		float64(standard) / count,
		capSum / count,
		float64(capMin),
		float64(capMax),
		wifiRatio,
		tvRatio,
		balconyRatio,
		minibarRatio,
		wifiRatio + tvRatio + balconyRatio + minibarRatio,
	}
}

// =============================================================================
// Extraction
// =============================================================================

// ExtractUserFeatures builds the normalized feature matrix for all users,
// indexed by position, along with the fitted normalizer.
func ExtractUserFeatures(users []domain.User) ([][]float64, *Normalizer) {
	rows := make([][]float64, len(users))
	for i := range users {
		rows[i] = UserVector(&users[i])
	}
	norm := FitNormalizer(rows, NumUserFeatures)
	norm.ApplyAll(rows)
	return rows, norm
}

// ExtractHotelFeatures builds the normalized feature matrix for all hotels,
// indexed by position, along with the fitted normalizer.
func ExtractHotelFeatures(hotels []domain.Hotel) ([][]float64, *Normalizer) {
	rows := make([][]float64, len(hotels))
	for i := range hotels {
		rows[i] = HotelVector(&hotels[i])
	}
	norm := FitNormalizer(rows, NumHotelFeatures)
	norm.ApplyAll(rows)
	return rows, norm
}
