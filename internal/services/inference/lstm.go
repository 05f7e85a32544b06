package inference

import (
	"errors"
	"fmt"
	"math"

	"PricePortal/internal/domain/models"
)

// layer is one step of the forward pass over a sequence of feature vectors.
type layer interface {
	forward(seq [][]float64) [][]float64
}

type lstmLayer struct {
	units           int
	returnSequences bool
	kernel          [][]float64 // in x 4u
	recurrent       [][]float64 // u x 4u
	bias            []float64   // 4u
}

func (l *lstmLayer) forward(seq [][]float64) [][]float64 {
	u := l.units
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)

	var out [][]float64
	if l.returnSequences {
		out = make([][]float64, 0, len(seq))
	}

	for _, x := range seq {
		copy(z, l.bias)
		for i, xi := range x {
			if xi == 0 {
				continue
			}
			row := l.kernel[i]
			for j := range z {
				z[j] += xi * row[j]
			}
		}
		for i, hi := range h {
			if hi == 0 {
				continue
			}
			row := l.recurrent[i]
			for j := range z {
				z[j] += hi * row[j]
			}
		}

		next := make([]float64, u)
		for k := 0; k < u; k++ {
			ig := sigmoid(z[k])
			fg := sigmoid(z[u+k])
			cand := math.Tanh(z[2*u+k])
			og := sigmoid(z[3*u+k])
			c[k] = fg*c[k] + ig*cand
			next[k] = og * math.Tanh(c[k])
		}
		h = next

		if l.returnSequences {
			out = append(out, h)
		}
	}

	if l.returnSequences {
		return out
	}
	return [][]float64{h}
}

// dropout is the identity at inference time.
type dropoutLayer struct{}

func (dropoutLayer) forward(seq [][]float64) [][]float64 { return seq }

type denseLayer struct {
	units      int
	kernel     [][]float64 // in x units
	bias       []float64
	activation func(float64) float64
}

func (d *denseLayer) forward(seq [][]float64) [][]float64 {
	out := make([][]float64, len(seq))
	for t, x := range seq {
		y := make([]float64, d.units)
		copy(y, d.bias)
		for i, xi := range x {
			row := d.kernel[i]
			for j := range y {
				y[j] += xi * row[j]
			}
		}
		for j := range y {
			y[j] = d.activation(y[j])
		}
		out[t] = y
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func activationFunc(name string) (func(float64) float64, error) {
	switch name {
	case "", "linear":
		return func(x float64) float64 { return x }, nil
	case "relu":
		return func(x float64) float64 { return math.Max(0, x) }, nil
	case "tanh":
		return math.Tanh, nil
	case "sigmoid":
		return sigmoid, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

// buildLayers validates shapes through the stack and returns the compiled layers.
func buildLayers(a *models.ModelArtifact) ([]layer, error) {
	if len(a.Layers) == 0 {
		return nil, errors.New("artifact has no layers")
	}
	in := a.Features
	if in <= 0 {
		in = 1
	}
	sequence := true
	layers := make([]layer, 0, len(a.Layers))

	for idx, ls := range a.Layers {
		switch ls.Type {
		case models.LayerLSTM:
			if !sequence {
				return nil, fmt.Errorf("layer %d: lstm after a non-sequence output", idx)
			}
			u := ls.Units
			if u <= 0 {
				return nil, fmt.Errorf("layer %d: lstm units must be positive", idx)
			}
			if err := checkMatrix(ls.Kernel, in, 4*u); err != nil {
				return nil, fmt.Errorf("layer %d kernel: %w", idx, err)
			}
			if err := checkMatrix(ls.RecurrentKernel, u, 4*u); err != nil {
				return nil, fmt.Errorf("layer %d recurrent_kernel: %w", idx, err)
			}
			if len(ls.Bias) != 4*u {
				return nil, fmt.Errorf("layer %d: bias has %d values, want %d", idx, len(ls.Bias), 4*u)
			}
			layers = append(layers, &lstmLayer{
				units:           u,
				returnSequences: ls.ReturnSequences,
				kernel:          ls.Kernel,
				recurrent:       ls.RecurrentKernel,
				bias:            ls.Bias,
			})
			in = u
			sequence = ls.ReturnSequences
		case models.LayerDropout:
			layers = append(layers, dropoutLayer{})
		case models.LayerDense:
			u := ls.Units
			if u <= 0 {
				return nil, fmt.Errorf("layer %d: dense units must be positive", idx)
			}
			if err := checkMatrix(ls.Kernel, in, u); err != nil {
				return nil, fmt.Errorf("layer %d kernel: %w", idx, err)
			}
			if len(ls.Bias) != u {
				return nil, fmt.Errorf("layer %d: bias has %d values, want %d", idx, len(ls.Bias), u)
			}
			act, err := activationFunc(ls.Activation)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", idx, err)
			}
			layers = append(layers, &denseLayer{units: u, kernel: ls.Kernel, bias: ls.Bias, activation: act})
			in = u
		default:
			return nil, fmt.Errorf("layer %d: unknown type %q", idx, ls.Type)
		}
	}

	if sequence {
		return nil, errors.New("model output is still a sequence; last lstm needs return_sequences=false")
	}
	if in != 1 {
		return nil, fmt.Errorf("model output has %d units, want 1", in)
	}
	return layers, nil
}

func checkMatrix(m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("has %d rows, want %d", len(m), rows)
	}
	for i, r := range m {
		if len(r) != cols {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(r), cols)
		}
	}
	return nil
}
