package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cryptomonitor/tracker/internal/format"
)

func TestCompact(t *testing.T) {
	tt := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"trillions", 1.32e12, "1.32T"},
		{"billions", 28e9, "28.00B"},
		{"millions", 4_500_000, "4.50M"},
		{"thousands", 67421.55, "67.42K"},
		{"small", 999.994, "999.99"},
		{"zero", 0, "0.00"},
		{"numeric string", "1500000", "1.50M"},
		{"junk string", "not a number", "0.00"},
		{"nil", nil, "0.00"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, format.Compact(tc.value))
		})
	}
}

func TestCurrency(t *testing.T) {
	tt := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"grouped", 67421.55, "67,421.55"},
		{"millions", 1234567.89, "1,234,567.89"},
		{"small", 12.5, "12.50"},
		{"zero", 0, "0.00"},
		{"junk", "junk", "0.00"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, format.Currency(tc.value))
		})
	}
}

func TestAbs(t *testing.T) {
	assert.Equal(t, 2.4, format.Abs(-2.4))
	assert.Equal(t, 2.4, format.Abs(2.4))
	assert.Equal(t, 5.0, format.Abs("-5"))
	assert.Equal(t, 0.0, format.Abs("junk"))
	assert.Equal(t, 0.0, format.Abs(nil))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Bitcoin", format.Capitalize("bitcoin"))
	assert.Equal(t, "Bitcoin", format.Capitalize("BITCOIN"))
	assert.Equal(t, "", format.Capitalize(""))
	assert.Equal(t, "X", format.Capitalize("x"))
}
