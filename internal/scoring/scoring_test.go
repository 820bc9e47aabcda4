package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/lazypower/claimgate/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestConfidenceLadder(t *testing.T) {
	tests := []struct {
		state   model.VerificationState
		trusted bool
		want    float64
	}{
		{model.StateSelfDeclared, false, 0.3},
		{model.StateSelfDeclared, true, 0.3},
		{model.StateHasEvidence, false, 0.5},
		{model.StateHasEvidence, true, 0.5},
		{model.StateAttested, false, 0.9},
		{model.StateAttested, true, 1.0},
		{model.StateTrustedOrg, false, 1.0},
		{model.StateTrustedOrg, true, 1.0},
	}
	for _, tt := range tests {
		got := Confidence(tt.state, tt.trusted)
		assert.Equal(t, tt.want, got, "Confidence(%s, %v)", tt.state, tt.trusted)
	}
}

func TestFreshnessGracePeriod(t *testing.T) {
	assert.Equal(t, 1.0, Freshness(0, false))
	assert.Equal(t, 1.0, Freshness(180, false))
	assert.Less(t, Freshness(181, false), 1.0)
	assert.Equal(t, 1.0, Freshness(-5, false))
}

func TestFreshnessExpired(t *testing.T) {
	assert.Equal(t, 0.1, Freshness(0, true))
	assert.Equal(t, 0.1, Freshness(1000, true))
}

func TestFreshnessAt400Days(t *testing.T) {
	want := 1 / (1 + math.Log(1+400.0/365.0))
	assert.InDelta(t, want, Freshness(400, false), 1e-9)
	assert.InDelta(t, 0.5747, Freshness(400, false), 1e-3)
}

func TestFreshnessMonotonicAndFloored(t *testing.T) {
	prev := 1.0
	for age := 0.0; age <= 1e7; age = age*1.5 + 1 {
		f := Freshness(age, false)
		assert.LessOrEqual(t, f, prev, "age %v", age)
		assert.GreaterOrEqual(t, f, 0.1, "age %v", age)
		assert.LessOrEqual(t, f, 1.0, "age %v", age)
		prev = f
	}
}

func TestFreshnessFloorClamp(t *testing.T) {
	d := Decay{GraceDays: 0, BaseDays: 1, Floor: 0.4}
	assert.Equal(t, 0.4, d.Freshness(1e6, false))
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.0, AgeDays(now, now))
	assert.Equal(t, 0.0, AgeDays(now.Add(time.Hour), now))
	assert.Equal(t, 10.0, AgeDays(now.AddDate(0, 0, -10), now))
	assert.Equal(t, 180.0, AgeDays(now.Add(-180*24*time.Hour-time.Hour), now))
}

func TestFreshnessLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{1.0, "Very Fresh"},
		{0.95, "Very Fresh"},
		{0.9, "Fresh"},
		{0.6, "Recent"},
		{0.3, "Aging"},
		{0.1, "Stale"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FreshnessLabel(tt.score), "score %v", tt.score)
	}
}

func TestCombineDefaults(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 0.68, w.Combine(0.9, 0.3, 1.0), 1e-9)
	assert.InDelta(t, 0.80, w.Combine(0.5, 1.0, 1.0), 1e-9)
}

func TestCombineMonotonic(t *testing.T) {
	w := DefaultWeights()
	steps := []float64{0, 0.1, 0.3, 0.5, 0.9, 1}
	for i := 1; i < len(steps); i++ {
		lo, hi := steps[i-1], steps[i]
		assert.LessOrEqual(t, w.Combine(lo, 0.5, 0.5), w.Combine(hi, 0.5, 0.5))
		assert.LessOrEqual(t, w.Combine(0.5, lo, 0.5), w.Combine(0.5, hi, 0.5))
		assert.LessOrEqual(t, w.Combine(0.5, 0.5, lo), w.Combine(0.5, 0.5, hi))
	}
}

func TestWeightsNormalized(t *testing.T) {
	w := Weights{Similarity: 2, Confidence: 2, Freshness: 1}.Normalized()
	assert.InDelta(t, 0.4, w.Similarity, 1e-9)
	assert.InDelta(t, 0.4, w.Confidence, 1e-9)
	assert.InDelta(t, 0.2, w.Freshness, 1e-9)

	assert.Equal(t, DefaultWeights(), DefaultWeights().Normalized())
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{Similarity: -1, Confidence: 1}.Validate())
	assert.Error(t, Weights{}.Validate())
}

func TestProvenanceLabel(t *testing.T) {
	assert.Equal(t, LabelVerified, ProvenanceLabel(1.0))
	assert.Equal(t, LabelVerified, ProvenanceLabel(0.9))
	assert.Equal(t, LabelHasEvidence, ProvenanceLabel(0.5))
	assert.Equal(t, LabelSelfDeclared, ProvenanceLabel(0.3))
	assert.Equal(t, LabelSelfDeclared, ProvenanceLabel(0.1))

	for _, s := range []model.VerificationState{model.StateSelfDeclared, model.StateHasEvidence, model.StateAttested, model.StateTrustedOrg} {
		c := Confidence(s, false)
		switch s {
		case model.StateSelfDeclared:
			assert.Equal(t, LabelSelfDeclared, ProvenanceLabel(c))
		case model.StateHasEvidence:
			assert.Equal(t, LabelHasEvidence, ProvenanceLabel(c))
		default:
			assert.Equal(t, LabelVerified, ProvenanceLabel(c))
		}
	}
}

func TestBreakdown(t *testing.T) {
	got := DefaultWeights().Breakdown(0.5, 1.0, 1.0)
	assert.Contains(t, got, "= 0.800")
}
