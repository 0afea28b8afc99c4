package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// EditDistanceSimilarity returns (maxLen - distance) / maxLen where distance is the
// Levenshtein distance between a and b. Two empty strings are identical (1.0).
func EditDistanceSimilarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-distance) / float64(maxLen)
}

// PhoneticCode returns a 4 character Soundex-style code for name.
// Non A-Z characters are dropped after upper-casing. The first letter is kept,
// each following letter contributes its digit only when it differs from the
// previous letter's digit, and the result is padded with '0' to 4 characters.
//
// The first letter's own digit is the "previous" digit for the second letter,
// so a run continuing the initial's sound is dropped: Lloyd is L030 and
// Pfister is P023. Seeding with no digit instead would give L403 and P102.
// The seeded reading is intended.
//
// This is a name-matching heuristic, not standards-compliant Soundex: vowels
// map to '0' and are emitted when they break a run. Names with no letters
// produce an empty code.
func PhoneticCode(name string) string {
	letters := make([]byte, 0, len(name))
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, byte(r))
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := []byte{letters[0]}
	prev := soundexDigit(letters[0])
	for _, c := range letters[1:] {
		digit := soundexDigit(c)
		if digit != prev {
			code = append(code, digit)
		}
		prev = digit
	}

	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code[:4])
}

func soundexDigit(c byte) byte {
	switch c {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	default:
		return '0'
	}
}
