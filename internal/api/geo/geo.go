// Package geo holds the pure normalization and geometry helpers shared
// by the enrichment, hotel and itinerary services: prefecture-name
// normalization, administrative-address reconstruction from the
// geocoder's noisy fields, point-in-polygon and great-circle distance.
package geo

import (
	"math"
	"regexp"
	"strings"
)

const earthRadiusKm = 6371.0088

// AddressComponents are the structured place fields the geocoder
// returns. Formatted is the free-text fallback used when the
// structured fields are insufficient.
type AddressComponents struct {
	State        string
	County       string
	City         string
	Municipality string
	Suburb       string
	District     string
	Formatted    string
}

var (
	postalCodeRe = regexp.MustCompile(`〒?\d{3}-?\d{4}`)
	// cityRe prefers a 市-level municipality; wardRe catches the
	// 区/町/村 tier when no 市 is present.
	cityRe = regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}ー]{1,8}市`)
	wardRe = regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}ー]{1,8}[区町村]`)
)

var countryTokens = []string{"日本", "Japan", "japan"}

// facilityNoiseWords are facility-type suffixes the geocoder sometimes
// leaves glued to a municipality token ("高岡市美術館").
var facilityNoiseWords = []string{
	"美術館", "博物館", "資料館", "記念館", "水族館", "動物園", "植物園",
	"公園", "庭園", "神社", "寺院", "城跡", "駅",
}

// CleanAddress builds a two-tier prefecture+municipality string from
// the geocoder's structured fields, falling back to regex extraction
// over the formatted address. County-level units (…郡) are never
// shown. It never fails: unresolvable input yields the best partial
// string, or the formatted input unmodified.
func CleanAddress(c AddressComponents) string {
	pref := NormalizePrefecture(c.State)

	muni := pickMunicipality(c.City, c.Municipality, c.Suburb, c.District)
	if muni == "" {
		muni = extractMunicipality(stripNoise(c.Formatted))
	}

	switch {
	case pref != "" && muni != "":
		return pref + muni
	case pref != "":
		return pref
	case muni != "":
		return muni
	}
	return strings.TrimSpace(c.Formatted)
}

// pickMunicipality selects the most specific municipality from the
// structured candidates, preferring a 市 over 区/町/村.
func pickMunicipality(candidates ...string) string {
	var fallback string
	for _, raw := range candidates {
		tok := denoiseMunicipality(strings.TrimSpace(raw))
		if tok == "" || strings.HasSuffix(tok, "郡") {
			continue
		}
		if strings.HasSuffix(tok, "市") {
			return tok
		}
		if fallback == "" && strings.ContainsAny(tok, "区町村") {
			if strings.HasSuffix(tok, "区") || strings.HasSuffix(tok, "町") || strings.HasSuffix(tok, "村") {
				fallback = tok
			}
		}
	}
	return fallback
}

// denoiseMunicipality strips a trailing facility-type noise word from
// a municipality token, keeping the prefix when it is itself a valid
// municipality ("高岡市美術館" -> "高岡市").
func denoiseMunicipality(tok string) string {
	for _, noise := range facilityNoiseWords {
		idx := strings.Index(tok, noise)
		if idx <= 0 {
			continue
		}
		head := tok[:idx]
		runes := []rune(head)
		if len(runes) >= 2 && len(runes) <= 10 && strings.ContainsAny(head, "市区町村") {
			return head
		}
	}
	return tok
}

func stripNoise(formatted string) string {
	s := postalCodeRe.ReplaceAllString(formatted, "")
	for _, tok := range countryTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	return s
}

// extractMunicipality applies the same 市-over-区/町/村 priority to the
// free-text formatted address. County segments are cut before
// matching so "…郡…町" never leaks a 郡 token.
func extractMunicipality(s string) string {
	// Strip the prefecture prefix so the municipality match cannot
	// swallow it ("富山県高岡市" -> "高岡市").
	for _, full := range prefectures {
		if idx := strings.Index(s, full); idx >= 0 {
			s = s[idx+len(full):]
			break
		}
	}
	// Resume after the county token so "〇〇郡〇〇町" yields "〇〇町".
	if idx := strings.LastIndex(s, "郡"); idx >= 0 {
		s = s[idx+len("郡"):]
	}
	if m := cityRe.FindString(s); m != "" {
		return denoiseMunicipality(m)
	}
	if m := wardRe.FindString(s); m != "" {
		return denoiseMunicipality(m)
	}
	return ""
}

// PointInPolygon runs the even-odd ray-casting test for a lat/lng
// point against an ordered ring of [lng, lat] vertices. Points exactly
// on a vertex or edge are implementation-defined.
func PointInPolygon(lat, lng float64, ring [][2]float64) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// HaversineKm returns the great-circle distance in km between two
// [lng, lat] points. Missing or non-finite input yields +Inf so
// distance comparisons degrade instead of panicking.
func HaversineKm(p1, p2 []float64) float64 {
	if len(p1) < 2 || len(p2) < 2 {
		return math.Inf(1)
	}
	for _, v := range []float64{p1[0], p1[1], p2[0], p2[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.Inf(1)
		}
	}

	lat1 := p1[1] * math.Pi / 180
	lat2 := p2[1] * math.Pi / 180
	dLat := (p2[1] - p1[1]) * math.Pi / 180
	dLng := (p2[0] - p1[0]) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
