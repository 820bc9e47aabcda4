package gatekeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/lazypower/claimgate/internal/access"
	"github.com/lazypower/claimgate/internal/model"
	"github.com/lazypower/claimgate/internal/registry"
)

// ErrNotFound is returned by sources for missing records.
var ErrNotFound = errors.New("not found")

// Snapshot is everything one retrieval reads, captured at one point in time.
type Snapshot struct {
	Graph   *access.Graph
	Claims  []model.Claim
	Trusted registry.TrustedOrgs
}

// Request binds q to the snapshot.
func (s *Snapshot) Request(q Query) Request {
	return Request{
		Query:   q,
		Claims:  s.Claims,
		Graph:   s.Graph,
		Trusted: s.Trusted,
	}
}

// Source loads snapshots for a viewer/target pair. It must include both
// users (when they exist), every edge between them, the target's claims and
// trust answers for the claims' attestors.
type Source interface {
	Snapshot(ctx context.Context, viewerID, targetID string) (*Snapshot, error)
}

// Scorer supplies similarity scores for claims against query text.
type Scorer interface {
	Score(ctx context.Context, query string, claims []model.Claim) (map[string]float64, error)
}

// Run loads a snapshot from src, fills in similarity from the installed
// Scorer when q has text but no scores, and retrieves.
func (p *Pipeline) Run(ctx context.Context, src Source, q Query) (*Result, error) {
	snap, err := src.Snapshot(ctx, q.ViewerID, q.TargetID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	if q.Similarity == nil && q.Text != "" && p.scorer != nil {
		scores, err := p.scorer.Score(ctx, q.Text, snap.Claims)
		if err != nil {
			return nil, fmt.Errorf("score similarity: %w", err)
		}
		q.Similarity = scores
	}

	return p.Retrieve(ctx, snap.Request(q))
}
