package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/claimgate/internal/model"
)

// AddEdge records e. Adding an existing edge is a no-op.
func (db *DB) AddEdge(e model.Edge) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("add edge: unknown kind %q", e.Kind)
	}
	_, err := db.Exec(`
		INSERT INTO edges (from_user, to_user, kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_user, to_user, kind) DO NOTHING
	`, e.From, e.To, string(e.Kind), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("add edge %s-%s->%s: %w", e.From, e.Kind, e.To, err)
	}
	return nil
}

// RemoveEdge deletes e if present.
func (db *DB) RemoveEdge(e model.Edge) error {
	_, err := db.Exec("DELETE FROM edges WHERE from_user = ? AND to_user = ? AND kind = ?",
		e.From, e.To, string(e.Kind))
	if err != nil {
		return fmt.Errorf("remove edge: %w", err)
	}
	return nil
}

// EdgesBetween returns every edge between a and b in either direction.
func (db *DB) EdgesBetween(ctx context.Context, a, b string) ([]model.Edge, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT from_user, to_user, kind FROM edges
		WHERE (from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?)
		ORDER BY id
	`, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("edges between: %w", err)
	}
	defer rows.Close()

	var out []model.Edge
	for rows.Next() {
		var e model.Edge
		var kind string
		if err := rows.Scan(&e.From, &e.To, &kind); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Kind = model.EdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
