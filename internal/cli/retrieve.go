package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/claimgate/internal/gatekeeper"
)

var (
	retrieveViewer  string
	retrieveTarget  string
	retrieveQuery   string
	retrieveMinConf float64
	retrieveLimit   int
	retrieveAt      string
	retrieveJSON    bool
	retrieveExplain bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Rank the claims a viewer may see about a target",
	Example: `  claimgate retrieve --viewer bob --target goby --query "python backend"
  claimgate retrieve --viewer goby --target goby --json`,
	RunE: runRetrieve,
}

func init() {
	f := retrieveCmd.Flags()
	f.StringVar(&retrieveViewer, "viewer", "", "viewer user id")
	f.StringVar(&retrieveTarget, "target", "", "target user id")
	f.StringVarP(&retrieveQuery, "query", "q", "", "query text scored against claims")
	f.Float64Var(&retrieveMinConf, "min-confidence", -1, "confidence floor (default from config)")
	f.IntVar(&retrieveLimit, "limit", -1, "max claims (default from config, 0 for all)")
	f.StringVar(&retrieveAt, "at", "", "reference time, RFC 3339 (default now)")
	f.BoolVar(&retrieveJSON, "json", false, "print the full result as JSON")
	f.BoolVar(&retrieveExplain, "explain", false, "print the score breakdown per claim")
	retrieveCmd.MarkFlagRequired("viewer")
	retrieveCmd.MarkFlagRequired("target")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	q := gatekeeper.Query{
		ViewerID:      retrieveViewer,
		TargetID:      retrieveTarget,
		Text:          retrieveQuery,
		MinConfidence: cfg.Retrieval.MinConfidence,
		Now:           time.Now().UTC(),
		Limit:         cfg.Retrieval.TopK,
	}
	if retrieveMinConf >= 0 {
		q.MinConfidence = retrieveMinConf
	}
	if retrieveLimit >= 0 {
		q.Limit = retrieveLimit
	}
	if retrieveAt != "" {
		at, err := time.Parse(time.RFC3339, retrieveAt)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		q.Now = at
	}

	be, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer be.close()

	res, err := retrieve(cmd, be, q)
	if err != nil {
		return fmt.Errorf("%s: %w", gatekeeper.ErrorCode(err), err)
	}
	summary := gatekeeper.Summarize(res.Claims, cfg.Retrieval.MinTrusted)

	if retrieveJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"result": res, "summary": summary})
	}

	fmt.Printf("%s → %s  relationships: %v  tags: %v\n",
		res.ViewerID, res.TargetID, res.Decision.Relationships.Sorted(), res.Decision.Tags.Sorted())
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: claim %s excluded: %s\n", w.ClaimID, w.Message)
	}
	if len(res.Claims) == 0 {
		fmt.Println("No visible claims.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tLABEL\tCONF\tFRESH\tTOPIC\tSUMMARY")
	for i, c := range res.Claims {
		fmt.Fprintf(tw, "%d\t%.3f\t%s\t%.2f\t%s\t%s\t%s\n",
			i+1, c.Combined, c.Label, c.Confidence, c.FreshnessLabel, c.Claim.Topic, truncate(c.Claim.Summary, 60))
		if retrieveExplain {
			fmt.Fprintf(tw, "\t\t%s\t\t\t\t\n", c.Breakdown)
		}
	}
	tw.Flush()

	fmt.Printf("\n%d claims, %d verified, %d trusted, avg confidence %.2f\n",
		summary.Total, summary.Verified, summary.Trusted, summary.AvgConfidence)
	return nil
}

// retrieve runs q. Without query text (or with lexical scoring off) every
// visible claim is scored as equally relevant, so ranking falls to confidence and freshness.
func retrieve(cmd *cobra.Command, src gatekeeper.Source, q gatekeeper.Query) (*gatekeeper.Result, error) {
	p := newPipeline()
	if q.Text != "" && cfg.Retrieval.LexicalScoring {
		return p.Run(cmd.Context(), src, q)
	}

	snap, err := src.Snapshot(cmd.Context(), q.ViewerID, q.TargetID)
	if err != nil {
		return nil, err
	}
	q.Similarity = make(map[string]float64, len(snap.Claims))
	for _, c := range snap.Claims {
		q.Similarity[c.ID] = 1
	}
	return p.Retrieve(cmd.Context(), snap.Request(q))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
