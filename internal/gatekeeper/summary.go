package gatekeeper

import "github.com/lazypower/claimgate/internal/scoring"

// Summary counts a result's claims by provenance.
type Summary struct {
	Total         int     `json:"total"`
	Verified      int     `json:"verified"`
	HasEvidence   int     `json:"has_evidence"`
	SelfDeclared  int     `json:"self_declared"`
	Trusted       int     `json:"trusted"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Summarize tallies claims. A claim counts as trusted when its confidence
// reaches minTrusted.
func Summarize(claims []ScoredClaim, minTrusted float64) Summary {
	s := Summary{Total: len(claims)}
	if len(claims) == 0 {
		return s
	}

	var sum float64
	for _, c := range claims {
		sum += c.Confidence
		switch c.Label {
		case scoring.LabelVerified:
			s.Verified++
		case scoring.LabelHasEvidence:
			s.HasEvidence++
		default:
			s.SelfDeclared++
		}
		if c.Confidence >= minTrusted {
			s.Trusted++
		}
	}
	s.AvgConfidence = sum / float64(len(claims))
	return s
}
