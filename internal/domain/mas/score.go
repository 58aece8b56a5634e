// Package mas computes the metabolic adherence score, a weighted blend of
// glucose stability and wellness sub-scores.
package mas

import "math"

// Inputs are the six sub-scores, conventionally on a 0-100 scale. Values are
// not range checked.
type Inputs struct {
	GlucoseStability float64 `json:"glucoseStability"`
	Recovery         float64 `json:"recovery"`
	HRV              float64 `json:"hrv"`
	Sleep            float64 `json:"sleep"`
	MacroAdherence   float64 `json:"macroAdherence"`
	Symptoms         float64 `json:"symptoms"`
}

// Weights must sum to 1 so that equal sub-scores produce the same MAS.
type Weights struct {
	Glucose  float64
	Recovery float64
	HRV      float64
	Sleep    float64
	Macro    float64
	Symptoms float64
}

// DefaultWeights is the fixed weight table.
var DefaultWeights = Weights{
	Glucose:  0.25,
	Recovery: 0.20,
	HRV:      0.15,
	Sleep:    0.15,
	Macro:    0.15,
	Symptoms: 0.10,
}

// Sum of all weights.
func (w Weights) Sum() float64 {
	return w.Glucose + w.Recovery + w.HRV + w.Sleep + w.Macro + w.Symptoms
}

// Score returns the MAS rounded to two decimals using DefaultWeights.
func Score(in Inputs) float64 {
	return DefaultWeights.Score(in)
}

// Score returns the weighted sum rounded to two decimals, ties to even.
func (w Weights) Score(in Inputs) float64 {
	sum := w.Glucose*in.GlucoseStability +
		w.Recovery*in.Recovery +
		w.HRV*in.HRV +
		w.Sleep*in.Sleep +
		w.Macro*in.MacroAdherence +
		w.Symptoms*in.Symptoms
	return math.RoundToEven(sum*100) / 100
}
