package store

import (
	"context"
	"fmt"

	"github.com/lazypower/claimgate/internal/access"
	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/model"
	"github.com/lazypower/claimgate/internal/registry"
)

// Source serves retrieval snapshots from the database.
type Source struct {
	db      *DB
	trusted registry.TrustedOrgs
}

// NewSource creates a Source. When trusted is nil, attestors are checked
// against the users table on every snapshot.
func NewSource(db *DB, trusted registry.TrustedOrgs) *Source {
	return &Source{db: db, trusted: trusted}
}

// Snapshot implements gatekeeper.Source. Unknown users are left out of the
// graph so that resolution reports them.
func (s *Source) Snapshot(ctx context.Context, viewerID, targetID string) (*gatekeeper.Snapshot, error) {
	users, err := s.db.ExistingUsers(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	edges, err := s.db.EdgesBetween(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	claims, err := s.db.ClaimsByOwner(ctx, targetID)
	if err != nil {
		return nil, err
	}

	trusted, err := s.trustSnapshot(ctx, claims)
	if err != nil {
		return nil, err
	}

	return &gatekeeper.Snapshot{
		Graph:   access.NewGraph(users, edges),
		Claims:  claims,
		Trusted: trusted,
	}, nil
}

func (s *Source) trustSnapshot(ctx context.Context, claims []model.Claim) (*registry.Static, error) {
	seen := make(map[string]bool)
	var attestors []string
	for _, c := range claims {
		if c.AttestorID != "" && !seen[c.AttestorID] {
			seen[c.AttestorID] = true
			attestors = append(attestors, c.AttestorID)
		}
	}

	if s.trusted != nil {
		return registry.Snapshot(s.trusted, attestors), nil
	}

	out := registry.NewStatic()
	for _, id := range attestors {
		ok, err := s.db.IsTrustedOrg(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("trust snapshot: %w", err)
		}
		if ok {
			out.Add(id)
		}
	}
	return out, nil
}

// ListUsers returns every user.
func (s *Source) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.db.ListUsers(ctx)
}

// Ping checks the database connection.
func (s *Source) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
