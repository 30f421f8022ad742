package hyperliquid

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/kaifufi/hyperliquid-sdk-go/actions"
)

const (
	// WireDecimals is the precision prices and sizes are sent with
	WireDecimals = 8

	// MaxPerpPriceDecimals and MaxSpotPriceDecimals bound price precision
	// together with the asset's size decimals
	MaxPerpPriceDecimals = 6
	MaxSpotPriceDecimals = 8

	// PriceSignificantFigures is the venue's limit on price precision
	PriceSignificantFigures = 5
)

// FloatToWire converts a price or size to its canonical decimal string. It
// fails when the value cannot be represented with WireDecimals places.
func FloatToWire(x float64) (string, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "", &InvalidParamError{Message: fmt.Sprintf("value must be finite, got: %f", x)}
	}
	rounded := strconv.FormatFloat(x, 'f', WireDecimals, 64)
	parsed, err := strconv.ParseFloat(rounded, 64)
	if err != nil {
		return "", &InvalidParamError{Message: fmt.Sprintf("invalid amount format: %v", err)}
	}
	if math.Abs(parsed-x) >= 1e-12 {
		return "", &InvalidParamError{Message: fmt.Sprintf("float_to_wire causes rounding: %v", x)}
	}
	if rounded == "-0.00000000" {
		rounded = "0.00000000"
	}
	return actions.NormalizeDecimal(rounded)
}

// FloatToInt scales x by 10^power and fails unless the result is integral
func FloatToInt(x float64, power int) (int64, error) {
	scaled := x * math.Pow10(power)
	rounded := math.Round(scaled)
	if math.Abs(rounded-scaled) >= 1e-3 {
		return 0, &InvalidParamError{Message: fmt.Sprintf("float_to_int causes rounding: %v", x)}
	}
	return int64(rounded), nil
}

// FloatToUSDInt converts a USD amount to the micro-unit integers used by
// vault and sub-account transfers
func FloatToUSDInt(x float64) (int64, error) {
	return FloatToInt(x, 6)
}

// RoundPrice rounds px to the venue's tick rules: five significant figures
// and at most (6 or 8) - szDecimals decimals. Integer prices are always valid.
func RoundPrice(px float64, szDecimals int, isSpot bool) float64 {
	if px == math.Trunc(px) && math.Abs(px) < 1e15 {
		return px
	}
	maxDecimals := MaxPerpPriceDecimals
	if isSpot {
		maxDecimals = MaxSpotPriceDecimals
	}
	sig, err := strconv.ParseFloat(strconv.FormatFloat(px, 'g', PriceSignificantFigures, 64), 64)
	if err != nil {
		return px
	}
	decimals := maxDecimals - szDecimals
	if decimals < 0 {
		decimals = 0
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(sig, 'f', decimals, 64), 64)
	if err != nil {
		return px
	}
	return out
}

// RoundSize rounds sz to the asset's szDecimals
func RoundSize(sz float64, szDecimals int) float64 {
	if szDecimals < 0 {
		szDecimals = 0
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(sz, 'f', szDecimals, 64), 64)
	if err != nil {
		return sz
	}
	return out
}

// NewCloid returns a random 128-bit client order id
func NewCloid() string {
	id := uuid.New()
	return "0x" + hex.EncodeToString(id[:])
}
