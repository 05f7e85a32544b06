package models

import (
	"time"

	"PricePortal/pkg/util"
)

// PriceBar is one daily close.
type PriceBar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is ordered by strictly increasing date with positive closes.
type PriceSeries []PriceBar

// Closes returns the close column.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Labels returns the dates formatted as YYYY-MM-DD.
func (s PriceSeries) Labels() []string {
	out := make([]string, len(s))
	for i, b := range s {
		out[i] = util.FormatDate(b.Date)
	}
	return out
}

// LastClose returns the most recent close, or 0 for an empty series.
func (s PriceSeries) LastClose() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Close
}
