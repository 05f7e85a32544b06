package models

import "time"

// Layer kinds understood by the native inference engine.
const (
	LayerLSTM    = "lstm"
	LayerDropout = "dropout"
	LayerDense   = "dense"
)

// LayerSpec holds one layer's weights in Keras layout:
// LSTM kernel is (input, 4*units), recurrent kernel (units, 4*units),
// bias 4*units, gate order input, forget, cell, output.
// Dense kernel is (input, units).
type LayerSpec struct {
	Type            string      `json:"type"`
	Units           int         `json:"units,omitempty"`
	ReturnSequences bool        `json:"return_sequences,omitempty"`
	Activation      string      `json:"activation,omitempty"`
	Rate            float64     `json:"rate,omitempty"`
	Kernel          [][]float64 `json:"kernel,omitempty"`
	RecurrentKernel [][]float64 `json:"recurrent_kernel,omitempty"`
	Bias            []float64   `json:"bias,omitempty"`
}

// ModelArtifact is the persisted predictor.
type ModelArtifact struct {
	Name      string      `json:"name"`
	Lookback  int         `json:"lookback"`
	Features  int         `json:"features"`
	Layers    []LayerSpec `json:"layers"`
	CreatedAt time.Time   `json:"created_at"`
}

// EpochLoss is one line of training history.
type EpochLoss struct {
	Epoch   int     `json:"epoch"`
	Loss    float64 `json:"loss"`
	ValLoss float64 `json:"val_loss"`
}
