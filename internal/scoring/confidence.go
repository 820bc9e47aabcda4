// Package scoring holds the pure functions the pipeline combines into a rank:
// the confidence ladder, freshness decay, and the weighted blend.
package scoring

import "github.com/lazypower/claimgate/internal/model"

// Ladder is the confidence assigned to each provenance tier.
// Confidence is a discrete classification, never interpolated.
type Ladder struct {
	SelfDeclared float64 `yaml:"self_declared" mapstructure:"self_declared" json:"self_declared"`
	HasEvidence  float64 `yaml:"has_evidence" mapstructure:"has_evidence" json:"has_evidence"`
	Attested     float64 `yaml:"attested" mapstructure:"attested" json:"attested"`
	TrustedOrg   float64 `yaml:"trusted_org" mapstructure:"trusted_org" json:"trusted_org"`
}

// DefaultLadder returns 0.3 / 0.5 / 0.9 / 1.0.
func DefaultLadder() Ladder {
	return Ladder{
		SelfDeclared: 0.3,
		HasEvidence:  0.5,
		Attested:     0.9,
		TrustedOrg:   1.0,
	}
}

// Confidence returns the ladder value for state. A trusted attestor lifts an
// attested claim to the top tier; it has no effect on the lower tiers.
// Unknown states score as self-declared.
func (l Ladder) Confidence(state model.VerificationState, trustedAttestor bool) float64 {
	switch state {
	case model.StateTrustedOrg:
		return l.TrustedOrg
	case model.StateAttested:
		if trustedAttestor {
			return l.TrustedOrg
		}
		return l.Attested
	case model.StateHasEvidence:
		return l.HasEvidence
	default:
		return l.SelfDeclared
	}
}

// Confidence applies DefaultLadder.
func Confidence(state model.VerificationState, trustedAttestor bool) float64 {
	return DefaultLadder().Confidence(state, trustedAttestor)
}
