package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDMS(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected DMS
	}{
		{"ascii markers", `45°30'15"`, DMS{45, 30, 15}},
		{"prime markers", `45°30′15″`, DMS{45, 30, 15}},
		{"ordinal degree sign", `45º30'15"`, DMS{45, 30, 15}},
		{"no seconds marker", `45°30'15`, DMS{45, 30, 15}},
		{"no seconds", `45°30'`, DMS{45, 30, 0}},
		{"fractional seconds", `22°41'3.25"`, DMS{22, 41, 3.25}},
		{"surrounding whitespace", "  45°30'15\"\t", DMS{45, 30, 15}},
		{"non-breaking space", "\u00a045°30'15\"", DMS{45, 30, 15}},
		{"trailing text ignored", `45°30'15"N`, DMS{45, 30, 15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDMS(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseDMS_InvalidFormat(t *testing.T) {
	inputs := []string{
		"",
		"abc",
		"45,30,15",
		"45 30 15",
		"45:30:15",
		`-45°30'15"`,
		`N45°30'15"`,
		"45.5",
		`45°30"`,
		`45°'15"`,
		`45°30'15.3.4"`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDMS(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCoordinateFormat)

			var formatErr *CoordinateFormatError
			require.True(t, errors.As(err, &formatErr))
			assert.Equal(t, input, formatErr.Input)
		})
	}
}

func TestDMSToDecimal(t *testing.T) {
	t.Run("degrees minutes seconds", func(t *testing.T) {
		dd, err := DMSToDecimal(`45°30'15"`)
		require.NoError(t, err)
		assert.InDelta(t, 45+30.0/60+15.0/3600, dd, 1e-12)
		assert.InDelta(t, 45.504167, dd, 1e-6)
	})

	t.Run("glyph variants agree", func(t *testing.T) {
		ascii, err := DMSToDecimal(`45°30'15"`)
		require.NoError(t, err)
		prime, err := DMSToDecimal(`45°30′15″`)
		require.NoError(t, err)
		assert.Equal(t, ascii, prime)
	})

	t.Run("missing seconds", func(t *testing.T) {
		dd, err := DMSToDecimal(`45°30'`)
		require.NoError(t, err)
		assert.Equal(t, 45.5, dd)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := DMSToDecimal("abc")
		assert.ErrorIs(t, err, ErrInvalidCoordinateFormat)
		assert.Contains(t, err.Error(), `"abc"`)
	})
}

func TestDecimalToDMS_RoundTrip(t *testing.T) {
	values := []float64{45.504167, 22.5, 48.2651, 26.999999, 44.0, 0.0001}

	for _, dd := range values {
		dms := DecimalToDMS(dd)
		assert.InDelta(t, dd, dms.Decimal(), 1e-9, "decimal round trip for %v", dd)

		parsed, err := ParseDMS(dms.String())
		require.NoError(t, err, "formatted DMS %q must parse", dms.String())
		assert.InDelta(t, dd, parsed.Decimal(), 1e-9, "string round trip for %v", dd)
	}
}

func TestDMS_String(t *testing.T) {
	assert.Equal(t, `45°30'15"`, DMS{45, 30, 15}.String())
	assert.Equal(t, `22°41'3.25"`, DMS{22, 41, 3.25}.String())
}
