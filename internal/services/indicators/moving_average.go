package indicators

import (
	"github.com/markcheno/go-talib"
)

// Window lengths of the reported moving averages.
const (
	ShortWindow = 100
	LongWindow  = 200
)

// SMA returns the simple moving average aligned with closes. Positions
// before the first full window are nil.
func SMA(closes []float64, period int) []*float64 {
	out := make([]*float64, len(closes))
	// talib indexes past the input when it is shorter than the period
	if period <= 0 || len(closes) < period {
		return out
	}

	values := talib.Sma(closes, period)
	for i := period - 1; i < len(values); i++ {
		v := values[i]
		out[i] = &v
	}
	return out
}

// Latest returns the value at the final position of series, or 0 when that
// position is undefined. Earlier defined values are not used.
func Latest(series []*float64) float64 {
	if len(series) == 0 || series[len(series)-1] == nil {
		return 0
	}
	return *series[len(series)-1]
}

// Scale multiplies every defined entry by rate; nil entries stay nil.
func Scale(series []*float64, rate float64) []*float64 {
	out := make([]*float64, len(series))
	for i, p := range series {
		if p == nil {
			continue
		}
		v := *p * rate
		out[i] = &v
	}
	return out
}

// ScaleValues multiplies every value by rate.
func ScaleValues(values []float64, rate float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * rate
	}
	return out
}

// Tail returns the last n elements of s, or s when it is shorter.
func Tail[T any](s []T, n int) []T {
	if n < 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
