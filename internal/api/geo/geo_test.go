package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrefecture(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"京都", "京都府"},
		{"京都府", "京都府"},
		{"Kyoto", "京都府"},
		{"富山", "富山県"},
		{"東京", "東京都"},
		{"Tokyo", "東京都"},
		{"北海道", "北海道"},
		{"沖縄", "沖縄県"},
		{"ネバダ", "ネバダ"}, // unmapped passes through
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePrefecture(tt.in), "input %q", tt.in)
	}
}

func TestCleanAddress(t *testing.T) {
	t.Run("canonical round trip", func(t *testing.T) {
		got := CleanAddress(AddressComponents{State: "京都府", City: "京都市"})
		assert.Equal(t, "京都府京都市", got)
	})

	t.Run("short prefecture form is normalized", func(t *testing.T) {
		got := CleanAddress(AddressComponents{State: "富山", City: "高岡市"})
		assert.Equal(t, "富山県高岡市", got)
	})

	t.Run("city wins over ward", func(t *testing.T) {
		got := CleanAddress(AddressComponents{State: "京都府", District: "北区", City: "京都市"})
		assert.Equal(t, "京都府京都市", got)
	})

	t.Run("facility noise word is split off", func(t *testing.T) {
		got := CleanAddress(AddressComponents{State: "富山県", City: "高岡市美術館"})
		assert.Equal(t, "富山県高岡市", got)
	})

	t.Run("county token never appears", func(t *testing.T) {
		got := CleanAddress(AddressComponents{
			State:     "山梨県",
			County:    "南都留郡",
			Formatted: "〒401-0301 山梨県南都留郡富士河口湖町",
		})
		assert.NotContains(t, got, "郡")
		assert.Equal(t, "山梨県富士河口湖町", got)
	})

	t.Run("formatted fallback with postal code and country", func(t *testing.T) {
		got := CleanAddress(AddressComponents{
			State:     "京都府",
			Formatted: "日本、〒603-8361 京都府京都市北区金閣寺町1",
		})
		assert.Equal(t, "京都府京都市", got)
	})

	t.Run("unresolvable input returns best partial", func(t *testing.T) {
		assert.Equal(t, "京都府", CleanAddress(AddressComponents{State: "京都府"}))
		assert.Equal(t, "somewhere", CleanAddress(AddressComponents{Formatted: "somewhere"}))
		assert.Equal(t, "", CleanAddress(AddressComponents{}))
	})
}

func TestPointInPolygon(t *testing.T) {
	// Unit square around the origin, [lng, lat] vertices.
	square := [][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	assert.True(t, PointInPolygon(0, 0, square), "centroid must be inside")
	assert.False(t, PointInPolygon(50, 50, square), "far point must be outside")
	assert.False(t, PointInPolygon(0, 2, square))
	assert.False(t, PointInPolygon(0, 0, square[:2]), "degenerate ring")
}

func TestHaversineKm(t *testing.T) {
	kinkakuji := []float64{135.7292, 35.0394}
	ginkakuji := []float64{135.7982, 35.0270}

	t.Run("identity is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, HaversineKm([]float64{135.0, 35.0}, []float64{135.0, 35.0}))
	})

	t.Run("symmetry", func(t *testing.T) {
		assert.InDelta(t, HaversineKm(kinkakuji, ginkakuji), HaversineKm(ginkakuji, kinkakuji), 1e-12)
	})

	t.Run("known distance", func(t *testing.T) {
		// Roughly 6.4 km across Kyoto.
		d := HaversineKm(kinkakuji, ginkakuji)
		assert.InDelta(t, 6.4, d, 0.5)
	})

	t.Run("invalid input yields infinity", func(t *testing.T) {
		assert.True(t, math.IsInf(HaversineKm(nil, kinkakuji), 1))
		assert.True(t, math.IsInf(HaversineKm([]float64{1}, kinkakuji), 1))
		assert.True(t, math.IsInf(HaversineKm([]float64{math.NaN(), 0}, kinkakuji), 1))
	})
}
