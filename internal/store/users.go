package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/model"
)

// UpsertUser creates u or replaces its attributes and roles.
func (db *DB) UpsertUser(u model.User) error {
	if u.ID == "" {
		return fmt.Errorf("upsert user: empty id")
	}
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert user: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO users (id, name, reputation, trusted, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, reputation = excluded.reputation, trusted = excluded.trusted
	`, u.ID, u.Name, u.Reputation, boolToInt(u.Trusted), now)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM user_roles WHERE user_id = ?", u.ID); err != nil {
		return fmt.Errorf("clear roles %s: %w", u.ID, err)
	}
	for _, r := range u.Roles {
		if _, err := tx.Exec("INSERT INTO user_roles (user_id, role) VALUES (?, ?)", u.ID, string(r)); err != nil {
			return fmt.Errorf("add role %s to %s: %w", r, u.ID, err)
		}
	}
	return tx.Commit()
}

// GetUser returns the user with id, or gatekeeper.ErrNotFound.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var trusted int
	err := db.QueryRowContext(ctx,
		"SELECT id, name, reputation, trusted FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Reputation, &trusted)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, gatekeeper.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Trusted = trusted != 0

	roles, err := db.rolesFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	u.Roles = roles[id]
	return &u, nil
}

// ListUsers returns every user ordered by id.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, name, reputation, trusted FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var users []model.User
	var ids []string
	for rows.Next() {
		var u model.User
		var trusted int
		if err := rows.Scan(&u.ID, &u.Name, &u.Reputation, &trusted); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Trusted = trusted != 0
		users = append(users, u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	roles, err := db.rolesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
	}
	return users, nil
}

// ExistingUsers returns the subset of ids present in the users table.
func (db *DB) ExistingUsers(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx,
		"SELECT id FROM users WHERE id IN ("+placeholders(len(ids))+")", anySlice(ids)...)
	if err != nil {
		return nil, fmt.Errorf("existing users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// IsTrustedOrg reports whether id is an organization flagged as trusted.
func (db *DB) IsTrustedOrg(ctx context.Context, id string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users u
		JOIN user_roles r ON r.user_id = u.id AND r.role = 'organization'
		WHERE u.id = ? AND u.trusted = 1
	`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is trusted org: %w", err)
	}
	return n > 0, nil
}

func (db *DB) rolesFor(ctx context.Context, ids []string) (map[string][]model.Role, error) {
	out := make(map[string][]model.Role, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.QueryContext(ctx,
		"SELECT user_id, role FROM user_roles WHERE user_id IN ("+placeholders(len(ids))+") ORDER BY role",
		anySlice(ids)...)
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, role string
		if err := rows.Scan(&id, &role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out[id] = append(out[id], model.Role(role))
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
