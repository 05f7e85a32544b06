package preprocess

import "errors"

// Lookback is the window length the model was trained with.
const Lookback = 60

// ErrInsufficientHistory is returned when a series is shorter than the lookback.
var ErrInsufficientHistory = errors.New("preprocess: insufficient history for lookback window")

// Pair is one supervised training sample.
type Pair struct {
	Window []float64
	Label  float64
}

// MakeTrainingPairs slides a window of length lookback over series. For
// i in [0, N-lookback-1) it yields (series[i:i+lookback], series[i+lookback]),
// so the final possible pair is not produced.
func MakeTrainingPairs(series []float64, lookback int) []Pair {
	n := len(series) - lookback - 1
	if lookback <= 0 || n <= 0 {
		return nil
	}
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{
			Window: series[i : i+lookback : i+lookback],
			Label:  series[i+lookback],
		}
	}
	return pairs
}

// SplitPairs separates windows and labels.
func SplitPairs(pairs []Pair) ([][]float64, []float64) {
	xs := make([][]float64, len(pairs))
	ys := make([]float64, len(pairs))
	for i, p := range pairs {
		xs[i] = p.Window
		ys[i] = p.Label
	}
	return xs, ys
}

// MakeInferenceWindow returns a copy of the last lookback values.
func MakeInferenceWindow(series []float64, lookback int) ([]float64, error) {
	if lookback <= 0 || len(series) < lookback {
		return nil, ErrInsufficientHistory
	}
	w := make([]float64, lookback)
	copy(w, series[len(series)-lookback:])
	return w, nil
}

// TrainTestSplit splits a normalized series at int(N*ratio). The test split
// starts lookback elements before the boundary so its first window is
// complete; these lookback elements are shared with the train split.
func TrainTestSplit(series []float64, ratio float64, lookback int) (train, test []float64) {
	trainSize := int(float64(len(series)) * ratio)
	train = series[:trainSize]
	start := trainSize - lookback
	if start < 0 {
		start = 0
	}
	test = series[start:]
	return train, test
}
