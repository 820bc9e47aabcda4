package scoring

import (
	"errors"
	"fmt"
	"math"
)

// Weights blend the three signals into one rank score.
type Weights struct {
	Similarity float64 `yaml:"similarity" mapstructure:"similarity" json:"similarity"`
	Confidence float64 `yaml:"confidence" mapstructure:"confidence" json:"confidence"`
	Freshness  float64 `yaml:"freshness" mapstructure:"freshness" json:"freshness"`
}

// DefaultWeights returns 0.40 / 0.40 / 0.20.
func DefaultWeights() Weights {
	return Weights{Similarity: 0.40, Confidence: 0.40, Freshness: 0.20}
}

// Validate rejects negative or all-zero weights.
func (w Weights) Validate() error {
	if w.Similarity < 0 || w.Confidence < 0 || w.Freshness < 0 {
		return errors.New("weights must be non-negative")
	}
	if w.sum() == 0 {
		return errors.New("weights must not all be zero")
	}
	return nil
}

func (w Weights) sum() float64 {
	return w.Similarity + w.Confidence + w.Freshness
}

// Normalized rescales w to sum to 1. Weights that already sum to 1, or sum
// to zero, come back unchanged.
func (w Weights) Normalized() Weights {
	total := w.sum()
	if total == 0 || math.Abs(total-1.0) < 1e-9 {
		return w
	}
	return Weights{
		Similarity: w.Similarity / total,
		Confidence: w.Confidence / total,
		Freshness:  w.Freshness / total,
	}
}

// Combine returns the weighted score. Inputs are expected in [0, 1]; with
// normalized weights the result is too.
func (w Weights) Combine(similarity, confidence, freshness float64) float64 {
	return w.Similarity*similarity + w.Confidence*confidence + w.Freshness*freshness
}

// Label is the provenance tag handed to the generation stage.
type Label string

const (
	LabelVerified     Label = "VERIFIED"
	LabelHasEvidence  Label = "HAS_EVIDENCE"
	LabelSelfDeclared Label = "SELF_DECLARED"
)

// ProvenanceLabel derives the label from a confidence score, matching the
// ladder tiers.
func ProvenanceLabel(confidence float64) Label {
	switch {
	case confidence >= 0.9:
		return LabelVerified
	case confidence >= 0.5:
		return LabelHasEvidence
	default:
		return LabelSelfDeclared
	}
}

// Breakdown renders the weighted contribution of each signal.
func (w Weights) Breakdown(similarity, confidence, freshness float64) string {
	return fmt.Sprintf("Similarity: %.2f (×%.2f) + Confidence: %.2f (×%.2f) + Freshness: %.2f (×%.2f) = %.3f",
		similarity, w.Similarity,
		confidence, w.Confidence,
		freshness, w.Freshness,
		w.Combine(similarity, confidence, freshness))
}
