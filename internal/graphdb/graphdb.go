// Package graphdb serves retrieval snapshots from a Neo4j social graph.
//
// Schema:
//
//	(:User {user_id, name, roles, reputation, trusted})
//	(:User)-[:FRIENDS_WITH|WORKS_WITH|RECRUITING]->(:User)
//	(:User)-[:MAKES_CLAIM]->(:Claim {claim_id, topic, content_summary,
//	    access_level, status, created_at, verified_at, expires_at, expired,
//	    attestation_ref, attestor_id})
//
// Timestamps are stored as epoch milliseconds.
package graphdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/lazypower/claimgate/internal/access"
	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/model"
	"github.com/lazypower/claimgate/internal/registry"
)

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store reads and writes the graph.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	trusted  registry.TrustedOrgs
	log      *slog.Logger
}

// Open connects and verifies connectivity.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Store{driver: driver, database: cfg.Database, log: logger}, nil
}

// Close releases the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// SetTrusted installs a registry consulted instead of the graph's trusted
// flags when snapshotting.
func (s *Store) SetTrusted(t registry.TrustedOrgs) {
	s.trusted = t
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// EnsureSchema creates uniqueness constraints.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		"CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE",
		"CREATE CONSTRAINT claim_id IF NOT EXISTS FOR (c:Claim) REQUIRE c.claim_id IS UNIQUE",
	}
	for _, q := range stmts {
		if _, err := session.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const (
	usersQuery = `
		MATCH (u:User) WHERE u.user_id IN $ids
		RETURN u.user_id AS id`

	edgesQuery = `
		MATCH (a:User {user_id: $a})-[r:FRIENDS_WITH|WORKS_WITH|RECRUITING]-(b:User {user_id: $b})
		RETURN startNode(r).user_id AS from, endNode(r).user_id AS to, type(r) AS kind`

	claimsQuery = `
		MATCH (:User {user_id: $owner})-[:MAKES_CLAIM]->(c:Claim)
		RETURN c.claim_id AS id, $owner AS owner_id, c.topic AS topic,
		       c.content_summary AS summary, c.access_level AS visibility,
		       c.status AS state, c.created_at AS created_at,
		       c.verified_at AS verified_at, c.expires_at AS expires_at,
		       c.expired AS expired, c.attestation_ref AS attestation_ref,
		       c.attestor_id AS attestor_id
		ORDER BY c.created_at, c.claim_id`

	listUsersQuery = `
		MATCH (u:User)
		RETURN u.user_id AS id, u.name AS name, u.roles AS roles,
		       u.reputation AS reputation, u.trusted AS trusted
		ORDER BY u.user_id`

	trustedQuery = `
		MATCH (o:User) WHERE o.user_id IN $ids
		  AND coalesce(o.trusted, false) AND 'organization' IN coalesce(o.roles, [])
		RETURN o.user_id AS id`
)

// Snapshot implements gatekeeper.Source. All reads run in one read
// transaction.
func (s *Store) Snapshot(ctx context.Context, viewerID, targetID string) (*gatekeeper.Snapshot, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		users, err := collect(ctx, tx, usersQuery, map[string]any{"ids": []string{viewerID, targetID}})
		if err != nil {
			return nil, fmt.Errorf("users: %w", err)
		}
		edgeRows, err := collect(ctx, tx, edgesQuery, map[string]any{"a": viewerID, "b": targetID})
		if err != nil {
			return nil, fmt.Errorf("edges: %w", err)
		}
		claimRows, err := collect(ctx, tx, claimsQuery, map[string]any{"owner": targetID})
		if err != nil {
			return nil, fmt.Errorf("claims: %w", err)
		}

		snap := &gatekeeper.Snapshot{}
		var ids []string
		for _, u := range users {
			ids = append(ids, asString(u["id"]))
		}
		var edges []model.Edge
		for _, row := range edgeRows {
			if e, ok := edgeFromRow(row); ok {
				edges = append(edges, e)
			}
		}
		snap.Graph = access.NewGraph(ids, edges)

		var attestors []string
		for _, row := range claimRows {
			c := claimFromRow(row)
			snap.Claims = append(snap.Claims, c)
			if c.AttestorID != "" {
				attestors = append(attestors, c.AttestorID)
			}
		}

		if s.trusted != nil {
			snap.Trusted = registry.Snapshot(s.trusted, attestors)
			return snap, nil
		}
		trustedRows, err := collect(ctx, tx, trustedQuery, map[string]any{"ids": attestors})
		if err != nil {
			return nil, fmt.Errorf("trusted orgs: %w", err)
		}
		reg := registry.NewStatic()
		for _, row := range trustedRows {
			reg.Add(asString(row["id"]))
		}
		snap.Trusted = reg
		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j snapshot: %w", err)
	}
	return out.(*gatekeeper.Snapshot), nil
}

// IsTrustedOrg reports whether id is a trusted organization node.
func (s *Store) IsTrustedOrg(ctx context.Context, id string) (bool, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, trustedQuery, map[string]any{"ids": []string{id}})
	if err != nil {
		return false, fmt.Errorf("is trusted org: %w", err)
	}
	found := result.Next(ctx)
	if err := result.Err(); err != nil {
		return false, fmt.Errorf("is trusted org: %w", err)
	}
	return found, nil
}

// ListUsers returns every user node ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, listUsersQuery, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	rows := out.([]map[string]any)
	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, userFromRow(row))
	}
	return users, nil
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) ([]map[string]any, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	for result.Next(ctx) {
		rows = append(rows, result.Record().AsMap())
	}
	return rows, result.Err()
}
