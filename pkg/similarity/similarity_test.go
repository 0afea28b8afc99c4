package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistanceSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"both empty", "", "", 1.0},
		{"one empty", "abc", "", 0.0},
		{"identical", "acme", "acme", 1.0},
		{"classic pair", "kitten", "sitting", 4.0 / 7.0},
		{"single substitution", "catherine", "katherine", 8.0 / 9.0},
		{"nickname", "jonathan smith", "jon smith", 9.0 / 14.0},
		{"typo", "jonathan smith", "jonathon smith", 13.0 / 14.0},
		{"case sensitive", "Acme", "acme", 0.75},
		{"multibyte runes", "josé", "jose", 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, EditDistanceSimilarity(tt.a, tt.b), 1e-9)
		})
	}

	t.Run("symmetric and bounded", func(t *testing.T) {
		pairs := [][2]string{{"robert", "rupert"}, {"a", "xyz"}, {"smith", "smyth"}}
		for _, p := range pairs {
			ab := EditDistanceSimilarity(p[0], p[1])
			ba := EditDistanceSimilarity(p[1], p[0])
			assert.Equal(t, ab, ba)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
	})
}

func TestPhoneticCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Robert", "R010"},
		{"Rupert", "R010"},
		{"Catherine", "C030"},
		{"Katherine", "K030"},
		{"Smith", "S503"},
		{"smith", "S503"},
		{"Pfister", "P023"},
		{"Lloyd", "L030"},
		{"A", "A000"},
		{"O'Brien", "O160"},
		{"  mary-ann ", "M060"},
		{"", ""},
		{"1234", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, PhoneticCode(tt.input))
		})
	}

	t.Run("initial letter seeds the previous digit", func(t *testing.T) {
		assert.Equal(t, "L030", PhoneticCode("Lloyd"))
		assert.NotEqual(t, "L403", PhoneticCode("Lloyd"))
		assert.Equal(t, "P023", PhoneticCode("Pfister"))
		assert.NotEqual(t, "P102", PhoneticCode("Pfister"))
		assert.Equal(t, PhoneticCode("Lloyd"), PhoneticCode("Loyd"))
	})

	t.Run("always four characters for names with letters", func(t *testing.T) {
		for _, name := range []string{"Li", "Washington", "Z", "Abernathy"} {
			assert.Len(t, PhoneticCode(name), 4)
		}
	})
}
