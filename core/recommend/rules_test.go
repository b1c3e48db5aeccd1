package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adalundhe/roomrank/core/domain"
)

func TestBudgetMultiplier(t *testing.T) {
	budget := domain.Budget{Min: 1000, Max: 1500}

	cases := []struct {
		name  string
		price float64
		want  float64
	}{
		{"well below budget", 700, 0.9},
		{"just under the well-below cut", 799, 0.9},
		{"slightly below budget", 900, 0.95},
		{"at minimum", 1000, 1.1},
		{"inside the bracket", 1250, 1.1},
		{"at maximum", 1500, 1.1},
		{"slightly above budget", 1700, 0.7},
		{"at the well-above cut", 1800, 0.7},
		{"well above budget", 1801, 0.5},
		{"far above budget", 5000, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factor, trace := budgetMultiplier(tc.price, budget)
			assert.Equal(t, tc.want, factor)
			assert.NotEmpty(t, trace)
		})
	}

	t.Run("penalty ordering is monotone", func(t *testing.T) {
		wellUnder, _ := budgetMultiplier(500, budget)
		slightlyUnder, _ := budgetMultiplier(900, budget)
		within, _ := budgetMultiplier(1200, budget)
		slightlyOver, _ := budgetMultiplier(1600, budget)
		wellOver, _ := budgetMultiplier(3000, budget)

		assert.Greater(t, within, slightlyUnder)
		assert.Greater(t, slightlyUnder, wellUnder)
		assert.Greater(t, within, slightlyOver)
		assert.Greater(t, slightlyOver, wellOver)
	})
}

func TestTypeMultiplier(t *testing.T) {
	factor, _ := typeMultiplier(domain.RoomTypeDeluxe, domain.RoomTypeDeluxe)
	assert.Equal(t, 1.2, factor)

	factor, _ = typeMultiplier(domain.RoomTypeStandard, domain.RoomTypeDeluxe)
	assert.Equal(t, 0.8, factor)
}

func TestAmenityMultiplier(t *testing.T) {
	room := domain.Room{HasWifi: true, HasTV: true}

	t.Run("no preferences means no adjustment", func(t *testing.T) {
		_, _, applies := amenityMultiplier(&room, nil)
		assert.False(t, applies)
	})

	t.Run("full match earns the top factor", func(t *testing.T) {
		factor, _, applies := amenityMultiplier(&room, []domain.Amenity{domain.AmenityWiFi, domain.AmenityTV})
		assert.True(t, applies)
		assert.InDelta(t, 1.2, factor, 1e-12)
	})

	t.Run("zero match bottoms out", func(t *testing.T) {
		factor, _, applies := amenityMultiplier(&room, []domain.Amenity{domain.AmenityBalcony})
		assert.True(t, applies)
		assert.InDelta(t, 0.8, factor, 1e-12)
	})

	t.Run("half match lands between", func(t *testing.T) {
		factor, _, applies := amenityMultiplier(&room, []domain.Amenity{domain.AmenityWiFi, domain.AmenityBalcony})
		assert.True(t, applies)
		assert.InDelta(t, 1.0, factor, 1e-12)
	})
}

func TestClampRating(t *testing.T) {
	assert.Equal(t, 1.0, clampRating(0.2))
	assert.Equal(t, 5.0, clampRating(6.3))
	assert.Equal(t, 3.7, clampRating(3.7))
}
