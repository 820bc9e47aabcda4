// Package gatekeeper runs a retrieval request through scope, access control,
// the confidence floor and ranking, producing an ordered, labeled claim list
// for the generation stage.
//
// A Pipeline holds only configuration. Every input that varies per request,
// including the reference time and the confidence floor, travels in the
// Request, so concurrent calls never share mutable state.
package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lazypower/claimgate/internal/access"
	"github.com/lazypower/claimgate/internal/model"
	"github.com/lazypower/claimgate/internal/registry"
	"github.com/lazypower/claimgate/internal/scoring"
)

var (
	// ErrMissingSimilarityScore means a claim survived filtering without a
	// similarity entry. It points at an upstream integration bug.
	ErrMissingSimilarityScore = errors.New("missing similarity score")

	// ErrInvalidRequest covers requests the pipeline cannot start on.
	ErrInvalidRequest = errors.New("invalid request")
)

// Options configures a Pipeline. Zero fields take the defaults.
type Options struct {
	Policy  access.Policy
	Ladder  scoring.Ladder
	Decay   scoring.Decay
	Weights scoring.Weights
	Logger  *slog.Logger
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	policy  access.Policy
	ladder  scoring.Ladder
	decay   scoring.Decay
	weights scoring.Weights
	scorer  Scorer
	log     *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		policy:  opts.Policy,
		ladder:  opts.Ladder,
		decay:   opts.Decay,
		weights: opts.Weights,
		log:     opts.Logger,
	}
	if p.policy == nil {
		p.policy = access.DefaultPolicy
	}
	if p.ladder == (scoring.Ladder{}) {
		p.ladder = scoring.DefaultLadder()
	}
	if p.decay == (scoring.Decay{}) {
		p.decay = scoring.DefaultDecay()
	}
	if p.weights == (scoring.Weights{}) {
		p.weights = scoring.DefaultWeights()
	}
	p.weights = p.weights.Normalized()
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// SetScorer installs the similarity fallback used by Run when a query
// carries text but no scores.
func (p *Pipeline) SetScorer(s Scorer) {
	p.scorer = s
}

// Weights returns the normalized weights in use.
func (p *Pipeline) Weights() scoring.Weights {
	return p.weights
}

// Query is the caller-facing part of a request.
type Query struct {
	ViewerID      string             `json:"viewer_id"`
	TargetID      string             `json:"target_id"`
	Text          string             `json:"query,omitempty"`
	Similarity    map[string]float64 `json:"similarity,omitempty"`
	MinConfidence float64            `json:"min_confidence"`
	Now           time.Time          `json:"now"`
	Limit         int                `json:"limit,omitempty"`
}

// Request is a Query bound to an immutable snapshot of the graph and claims.
type Request struct {
	Query
	Claims  []model.Claim
	Graph   *access.Graph
	Trusted registry.TrustedOrgs
}

// Warning reports a claim excluded for bad data.
type Warning struct {
	ClaimID string `json:"claim_id"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// ScoredClaim is a claim with its per-query scores. It lives for one query.
type ScoredClaim struct {
	Claim          model.Claim   `json:"claim"`
	Confidence     float64       `json:"confidence"`
	Freshness      float64       `json:"freshness"`
	Similarity     float64       `json:"similarity"`
	Combined       float64       `json:"combined"`
	Label          scoring.Label `json:"label"`
	FreshnessLabel string        `json:"freshness_label"`
	AgeDays        float64       `json:"age_days"`
	Breakdown      string        `json:"breakdown"`
}

// Result is the ordered output of a retrieval. Scoped counts the target's
// claims this viewer may see, before the confidence filter and limit.
type Result struct {
	ViewerID string          `json:"viewer_id"`
	TargetID string          `json:"target_id"`
	Decision access.Decision `json:"access"`
	Claims   []ScoredClaim   `json:"claims"`
	Warnings []Warning       `json:"warnings,omitempty"`
	Scoped   int             `json:"scoped"`
}

// Retrieve runs Scope → Access → Confidence → Rank → Order → Label.
// An empty result is not an error.
func (p *Pipeline) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Now.IsZero() {
		return nil, fmt.Errorf("%w: reference time is required", ErrInvalidRequest)
	}

	kinds, err := access.Resolve(req.ViewerID, req.TargetID, req.Graph)
	if err != nil {
		return nil, fmt.Errorf("resolve relationship: %w", err)
	}
	decision := p.policy.Allowed(kinds)

	res := &Result{
		ViewerID: req.ViewerID,
		TargetID: req.TargetID,
		Decision: decision,
		Claims:   []ScoredClaim{},
	}

	type candidate struct {
		claim      model.Claim
		confidence float64
	}
	var survivors []candidate

	for _, c := range req.Claims {
		if c.OwnerID != req.TargetID {
			continue
		}
		// Hidden claims must not show up in counts or warnings.
		if !c.Visibility.Valid() {
			err := c.Validate()
			p.log.Warn("excluding claim", "claim", c.ID, "target", req.TargetID, "error", err)
			if decision.IsOwner {
				res.Warnings = append(res.Warnings, Warning{ClaimID: c.ID, Message: err.Error(), Err: err})
			}
			continue
		}
		if !decision.Allows(c.Visibility) {
			continue
		}
		res.Scoped++

		if err := c.Validate(); err != nil {
			res.Warnings = append(res.Warnings, Warning{ClaimID: c.ID, Message: err.Error(), Err: err})
			p.log.Warn("excluding claim", "claim", c.ID, "target", req.TargetID, "error", err)
			continue
		}

		trusted := req.Trusted != nil && c.AttestorID != "" && req.Trusted.IsTrusted(c.AttestorID)
		conf := p.ladder.Confidence(c.State, trusted)
		if !decision.IsOwner && conf < req.MinConfidence {
			continue
		}
		survivors = append(survivors, candidate{claim: c, confidence: conf})
	}

	for _, s := range survivors {
		sim, ok := lookupSimilarity(req.Similarity, s.claim.ID)
		if !ok {
			return nil, fmt.Errorf("%w: claim %s", ErrMissingSimilarityScore, s.claim.ID)
		}

		age := scoring.AgeDays(s.claim.Timestamp(), req.Now)
		fresh := p.decay.Freshness(age, s.claim.IsExpired(req.Now))

		res.Claims = append(res.Claims, ScoredClaim{
			Claim:          s.claim,
			Confidence:     s.confidence,
			Freshness:      fresh,
			Similarity:     sim,
			Combined:       roundScore(p.weights.Combine(sim, s.confidence, fresh)),
			Label:          scoring.ProvenanceLabel(s.confidence),
			FreshnessLabel: scoring.FreshnessLabel(fresh),
			AgeDays:        age,
			Breakdown:      p.weights.Breakdown(sim, s.confidence, fresh),
		})
	}

	Order(res.Claims)
	if req.Limit > 0 && len(res.Claims) > req.Limit {
		res.Claims = res.Claims[:req.Limit]
	}

	p.log.Debug("retrieve",
		"viewer", req.ViewerID,
		"target", req.TargetID,
		"relationships", kinds.Sorted(),
		"scoped", res.Scoped,
		"returned", len(res.Claims),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// lookupSimilarity fetches and clamps a score. NaN counts as missing.
func lookupSimilarity(m map[string]float64, id string) (float64, bool) {
	v, ok := m[id]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return math.Max(0, math.Min(1, v)), true
}

// ErrorCode maps an error to the stable code exposed over the API.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, access.ErrInvalidRelationshipInput):
		return "INVALID_RELATIONSHIP_INPUT"
	case errors.Is(err, ErrMissingSimilarityScore):
		return "MISSING_SIMILARITY_SCORE"
	case errors.Is(err, model.ErrInvalidClaimData):
		return "INVALID_CLAIM_DATA"
	case errors.Is(err, ErrInvalidRequest):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELED"
	default:
		return "INTERNAL"
	}
}
