package graphdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/lazypower/claimgate/internal/model"
)

// UpsertUser merges a user node.
func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	_, err := session.Run(ctx, `
		MERGE (u:User {user_id: $id})
		SET u.name = $name, u.roles = $roles, u.reputation = $reputation, u.trusted = $trusted
	`, map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"roles":      roles,
		"reputation": u.Reputation,
		"trusted":    u.Trusted,
	})
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// AddEdge merges a relationship between two existing users.
func (s *Store) AddEdge(ctx context.Context, e model.Edge) error {
	relType, ok := relTypes[e.Kind]
	if !ok {
		return fmt.Errorf("add edge: unknown kind %q", e.Kind)
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// relationship types cannot be parameters; relType comes from a fixed table
	query := `
		MATCH (a:User {user_id: $from}), (b:User {user_id: $to})
		MERGE (a)-[:` + relType + `]->(b)`
	if _, err := session.Run(ctx, query, map[string]any{"from": e.From, "to": e.To}); err != nil {
		return fmt.Errorf("add edge %s-%s->%s: %w", e.From, e.Kind, e.To, err)
	}
	return nil
}

// CreateClaim merges a claim and links it to its owner. It returns the
// stored claim with any generated id.
func (s *Store) CreateClaim(ctx context.Context, c model.Claim) (model.Claim, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Topic == "" {
		c.Topic = model.TopicOther
	}
	if err := c.Validate(); err != nil {
		return c, err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.Run(ctx, `
		MATCH (u:User {user_id: $owner_id})
		MERGE (c:Claim {claim_id: $id})
		SET c.topic = $topic, c.content_summary = $summary, c.access_level = $visibility,
		    c.status = $state, c.created_at = $created_at, c.verified_at = $verified_at,
		    c.expires_at = $expires_at, c.expired = $expired,
		    c.attestation_ref = $attestation_ref, c.attestor_id = $attestor_id
		MERGE (u)-[:MAKES_CLAIM]->(c)
	`, claimParams(c))
	if err != nil {
		return c, fmt.Errorf("create claim %s: %w", c.ID, err)
	}
	return c, nil
}
