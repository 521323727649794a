package fuzzy

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dpe-match/internal/normalize"
)

// Anchor selects which end of the longer string must carry the shorter one
// for the containment band to apply.
type Anchor int

const (
	// AnchorSuffix: the shorter form ends the longer one, as a street name
	// preceded by a house number ("rue de la paix" in "12 bis rue de la paix").
	AnchorSuffix Anchor = iota
	// AnchorPrefix: the shorter form starts the longer one, as a commune
	// followed by a qualifier ("evian" in "evian les bains").
	AnchorPrefix
)

func (a Anchor) String() string {
	switch a {
	case AnchorSuffix:
		return "suffix"
	case AnchorPrefix:
		return "prefix"
	default:
		return "unknown"
	}
}

const (
	// Distances up to this value are treated as typos
	typoDistance = 3
	typoPenalty  = 15.0

	bandCeiling = 85.0
	bandFloor   = 50.0
	bandSpread  = 50.0
)

// Score returns a 0-100 similarity between x and y after standardization.
func Score(x, y string, anchor Anchor) float64 {
	a, b := normalize.Standardize(x), normalize.Standardize(y)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	d := Distance(a, b)
	if d <= typoDistance {
		return math.Max(0, 100-float64(d)*typoPenalty)
	}

	lenA, lenB := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	shorter, longer := a, b
	lenS, lenL := lenA, lenB
	if lenA > lenB {
		shorter, longer = b, a
		lenS, lenL = lenB, lenA
	}

	if contains(longer, shorter, anchor) {
		extraRatio := float64(lenL-lenS) / float64(lenL)
		return math.Max(bandFloor, bandCeiling-extraRatio*bandSpread)
	}

	maxLen := max(lenA, lenB)
	return math.Max(0, math.Round(100-(float64(d)/float64(maxLen))*100))
}

// StreetScore compares street names, tolerating a leading house number.
func StreetScore(x, y string) float64 {
	return Score(x, y, AnchorSuffix)
}

// CityScore compares commune names, tolerating a trailing qualifier.
func CityScore(x, y string) float64 {
	return Score(x, y, AnchorPrefix)
}

func contains(longer, shorter string, anchor Anchor) bool {
	switch anchor {
	case AnchorSuffix:
		return strings.HasSuffix(longer, shorter)
	case AnchorPrefix:
		return strings.HasPrefix(longer, shorter)
	}
	return false
}
