package hyperliquid

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatToWire(t *testing.T) {
	tests := []struct {
		in      float64
		want    string
		wantErr bool
	}{
		{in: 100.5, want: "100.5"},
		{in: 0.1, want: "0.1"},
		{in: 1, want: "1"},
		{in: 64000.12345678, want: "64000.12345678"},
		{in: 1e-8, want: "0.00000001"},
		{in: math.Copysign(0, -1), want: "0"},
		{in: 0.123456789, wantErr: true},
		{in: math.NaN(), wantErr: true},
		{in: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {
		got, err := FloatToWire(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "FloatToWire(%v)", tt.in)
			continue
		}
		require.NoError(t, err, "FloatToWire(%v)", tt.in)
		assert.Equal(t, tt.want, got, "FloatToWire(%v)", tt.in)
	}
}

func TestFloatToInt(t *testing.T) {
	v, err := FloatToInt(1.5, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), v)

	v, err = FloatToUSDInt(12.34)
	require.NoError(t, err)
	assert.Equal(t, int64(12340000), v)

	_, err = FloatToInt(0.0000001, 6)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		name       string
		px         float64
		szDecimals int
		spot       bool
		want       float64
	}{
		{name: "integer untouched", px: 123456, szDecimals: 5, want: 123456},
		{name: "five significant figures", px: 1234.5678, want: 1234.6},
		{name: "perp decimal cap", px: 0.0123456789, szDecimals: 2, want: 0.0123},
		{name: "spot decimal cap", px: 0.0123456789, szDecimals: 2, spot: true, want: 0.012346},
		{name: "no decimals left", px: 3.21, szDecimals: 6, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RoundPrice(tt.px, tt.szDecimals, tt.spot), 1e-12)
		})
	}
}

func TestRoundSize(t *testing.T) {
	assert.InDelta(t, 0.12346, RoundSize(0.123456789, 5), 1e-12)
	assert.InDelta(t, 3.0, RoundSize(2.6, 0), 1e-12)
	assert.InDelta(t, 0.0, RoundSize(0.004, 2), 1e-12)
	assert.InDelta(t, 1.0, RoundSize(1.4, -1), 1e-12)
}

func TestNewCloid(t *testing.T) {
	a, b := NewCloid(), NewCloid()
	assert.Len(t, a, 34)
	assert.True(t, strings.HasPrefix(a, "0x"))
	assert.Equal(t, strings.ToLower(a), a)
	assert.NotEqual(t, a, b)
}
