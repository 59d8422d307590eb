package playback

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ToFixed formats x with the given number of decimals, rounding half away from zero
// on the exact binary value of x. 1.005 is stored as 1.00499..., so ToFixed(1.005, 2)
// is "1.00", while 0.125 is exact and gives "0.13".
func ToFixed(x float64, places int) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	if places < 0 {
		places = 0
	}
	neg := x < 0
	if neg {
		x = -x
	}
	r := new(big.Rat).SetFloat64(x)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	r.Add(r, big.NewRat(1, 2))
	digits := new(big.Int).Quo(r.Num(), r.Denom()).String()
	if places > 0 {
		if len(digits) <= places {
			digits = strings.Repeat("0", places-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-places] + "." + digits[len(digits)-places:]
	}
	if neg {
		digits = "-" + digits
	}
	return digits
}

// Round rounds x to the given number of decimals using ToFixed semantics.
func Round(x float64, places int) float64 {
	v, err := strconv.ParseFloat(ToFixed(x, places), 64)
	if err != nil {
		return x
	}
	return v
}
