package preprocess

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateRange is returned when the fitted range is empty or flat.
var ErrDegenerateRange = errors.New("preprocess: scaler range is degenerate (max == min)")

// ScalerState is a fitted min-max normalizer onto [0, 1].
type ScalerState struct {
	Min float64
	Max float64
}

// Fit computes the min and max of prices.
func Fit(prices []float64) (ScalerState, error) {
	if len(prices) == 0 {
		return ScalerState{}, ErrDegenerateRange
	}
	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	s := ScalerState{Min: lo, Max: hi}
	if err := s.Validate(); err != nil {
		return ScalerState{}, err
	}
	return s, nil
}

// Validate rejects flat or non-finite ranges.
func (s ScalerState) Validate() error {
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) || math.IsInf(s.Min, 0) || math.IsInf(s.Max, 0) {
		return fmt.Errorf("preprocess: non-finite scaler range [%v, %v]", s.Min, s.Max)
	}
	if !(s.Max > s.Min) {
		return ErrDegenerateRange
	}
	return nil
}

// Transform maps x to (x-min)/(max-min). Values outside the fitted range
// fall outside [0, 1]; they are not clipped.
func (s ScalerState) Transform(x float64) float64 {
	return (x - s.Min) / (s.Max - s.Min)
}

// InverseTransform maps y back to y*(max-min)+min.
func (s ScalerState) InverseTransform(y float64) float64 {
	return y*(s.Max-s.Min) + s.Min
}

func (s ScalerState) TransformSeries(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = s.Transform(x)
	}
	return out
}

func (s ScalerState) InverseTransformSeries(ys []float64) []float64 {
	out := make([]float64, len(ys))
	for i, y := range ys {
		out[i] = s.InverseTransform(y)
	}
	return out
}

type scalerFile struct {
	DataMin      float64    `json:"data_min"`
	DataMax      float64    `json:"data_max"`
	FeatureRange [2]float64 `json:"feature_range"`
}

func (s ScalerState) MarshalJSON() ([]byte, error) {
	return json.Marshal(scalerFile{DataMin: s.Min, DataMax: s.Max, FeatureRange: [2]float64{0, 1}})
}

func (s *ScalerState) UnmarshalJSON(b []byte) error {
	var f scalerFile
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f.FeatureRange != [2]float64{0, 1} {
		return fmt.Errorf("preprocess: unsupported feature range %v", f.FeatureRange)
	}
	st := ScalerState{Min: f.DataMin, Max: f.DataMax}
	if err := st.Validate(); err != nil {
		return err
	}
	*s = st
	return nil
}
