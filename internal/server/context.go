package server

import (
	"fmt"
	"strings"

	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/llm"
	"github.com/lazypower/claimgate/internal/scoring"
)

var labelMarkers = map[scoring.Label]string{
	scoring.LabelVerified:     "✅ [VERIFIED - Attested]",
	scoring.LabelHasEvidence:  "📎 [Has Evidence]",
	scoring.LabelSelfDeclared: "📝 [Self-Declared]",
}

// buildContext renders a ranked result as the markdown block handed to the
// generation stage. Claims keep their ranked order.
func buildContext(query string, res *gatekeeper.Result, summary gatekeeper.Summary, cv llm.Caveats) string {
	var b strings.Builder

	b.WriteString("<context>\n## Claims about " + res.TargetID + "\n")
	if query != "" {
		b.WriteString(fmt.Sprintf("Question: %s\n", query))
	}

	if len(res.Claims) == 0 {
		b.WriteString("\nNo claims are visible to this viewer. Say that there is not enough information.\n")
		b.WriteString("</context>")
		return b.String()
	}

	b.WriteString("\n### Reliability markers\n")
	fmt.Fprintf(&b, "- %s attested by a verifier; may be stated as %q\n", labelMarkers[scoring.LabelVerified], cv.Verified)
	b.WriteString("- " + labelMarkers[scoring.LabelHasEvidence] + " backed by supporting evidence such as a repository or link\n")
	fmt.Fprintf(&b, "- %s unverified; state it as %q\n", labelMarkers[scoring.LabelSelfDeclared], cv.SelfDeclared)

	b.WriteString("\n### Claims\n")
	for _, c := range res.Claims {
		b.WriteString(fmt.Sprintf("- %s (Confidence: %.0f%%, %s) [%s] %s\n",
			labelMarkers[c.Label], c.Confidence*100, c.FreshnessLabel, c.Claim.Topic, c.Claim.Summary))
	}

	b.WriteString(fmt.Sprintf("\n### Summary\n%d claims: %d verified, %d with evidence, %d self-declared (average confidence %.0f%%)\n",
		summary.Total, summary.Verified, summary.HasEvidence, summary.SelfDeclared, summary.AvgConfidence*100))

	b.WriteString("</context>")
	return b.String()
}
