package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		in     string
		want   Side
		wantOK bool
	}{
		{"BUY", SideBuy, true},
		{"sell", SideSell, true},
		{" Buy ", SideBuy, true},
		{"HOLD", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSide(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCost_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		price    string
		want     string
	}{
		{"Exact", "0.1", "50080", "5008"},
		{"HalfUp", "0.000000015", "1", "0.00000002"},
		{"Down", "0.000000014", "1", "0.00000001"},
		{"Fractional", "0.12345678", "3010.5", "371.66663619"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cost(decimal.RequireFromString(tt.quantity), decimal.RequireFromString(tt.price))
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "5008.00000000", FormatAmount(decimal.RequireFromString("5008")))
	assert.Equal(t, "0.12345678", FormatAmount(decimal.RequireFromString("0.123456789")))
	assert.Equal(t, "0.00000000", FormatAmount(decimal.Zero))
}

func TestFitsScale(t *testing.T) {
	assert.True(t, FitsScale(decimal.RequireFromString("0.10000000")))
	assert.True(t, FitsScale(decimal.RequireFromString("0.100000000")))
	assert.False(t, FitsScale(decimal.RequireFromString("0.000000001")))
}
