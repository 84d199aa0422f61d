package entities

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeProvinceName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Gauteng", ProvinceGauteng},
		{"  gp ", ProvinceGauteng},
		{"KZN", ProvinceKwaZuluNatal},
		{"Kwazulu  Natal", ProvinceKwaZuluNatal},
		{"WESTERN CAPE", ProvinceWesternCape},
		{"wes-kaap", ProvinceWesternCape},
		{"North-West", ProvinceNorthWest},
		{"Free State", ProvinceFreeState},
		{" Atlantis ", "Atlantis"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeProvinceName(tt.raw))
		})
	}
}

func TestProvinceForPoint(t *testing.T) {
	assert.Equal(t, ProvinceGauteng, ProvinceForPoint(-25.7, 28.2))
	assert.Equal(t, ProvinceWesternCape, ProvinceForPoint(-33.92, 18.42))
	assert.Equal(t, ProvinceKwaZuluNatal, ProvinceForPoint(-29.85, 31.02))
	assert.Equal(t, ProvinceUnknown, ProvinceForPoint(0, 0))
}

func TestProvinceRegionsAreInsideNationalBounds(t *testing.T) {
	for _, region := range ProvinceRegions {
		b := region.Bounds
		assert.False(t, b.IsDegenerate(), region.Name)
		assert.True(t, NationalBounds.Contains(b.North, b.East), region.Name)
		assert.True(t, NationalBounds.Contains(b.South, b.West), region.Name)
	}
	assert.Len(t, ProvinceRegions, 9)
}

func TestProvinceBounds(t *testing.T) {
	box, ok := ProvinceBounds("wc")
	assert.True(t, ok)
	assert.True(t, box.Contains(-33.92, 18.42))

	_, ok = ProvinceBounds("Atlantis")
	assert.False(t, ok)
}

func TestBoundingBox_Validate(t *testing.T) {
	assert.NoError(t, BoundingBox{North: -25, South: -26, East: 29, West: 28}.Validate())
	assert.NoError(t, BoundingBox{North: -26, South: -25, East: 29, West: 28}.Validate())
	assert.Error(t, BoundingBox{North: math.NaN(), South: -26, East: 29, West: 28}.Validate())
	assert.Error(t, BoundingBox{North: -25, South: -26, East: math.Inf(1), West: 28}.Validate())
}

func TestBoundingBox_IsDegenerate(t *testing.T) {
	assert.False(t, BoundingBox{North: -25, South: -26, East: 29, West: 28}.IsDegenerate())
	assert.True(t, BoundingBox{North: -26, South: -26, East: 29, West: 28}.IsDegenerate())
	assert.True(t, BoundingBox{North: -25, South: -26, East: 28, West: 29}.IsDegenerate())
}
