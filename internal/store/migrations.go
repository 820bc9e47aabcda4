package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users and roles",
		SQL: `
CREATE TABLE users (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    reputation  REAL NOT NULL DEFAULT 0,
    trusted     INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);

CREATE TABLE user_roles (
    user_id  TEXT NOT NULL,
    role     TEXT NOT NULL CHECK (role IN ('freelancer', 'recruiter', 'verifier', 'organization')),
    PRIMARY KEY (user_id, role),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     2,
		Description: "edges: social graph",
		SQL: `
CREATE TABLE edges (
    id          INTEGER PRIMARY KEY,
    from_user   TEXT NOT NULL,
    to_user     TEXT NOT NULL,
    kind        TEXT NOT NULL CHECK (kind IN ('FRIEND', 'COLLEAGUE', 'RECRUITING')),
    created_at  INTEGER NOT NULL,
    UNIQUE (from_user, to_user, kind),
    FOREIGN KEY (from_user) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (to_user)   REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_edges_from ON edges(from_user);
CREATE INDEX idx_edges_to   ON edges(to_user);
`,
	},
	{
		Version:     3,
		Description: "claims",
		SQL: `
CREATE TABLE claims (
    id               TEXT PRIMARY KEY,
    owner_id         TEXT NOT NULL,
    topic            TEXT NOT NULL DEFAULT 'other',
    summary          TEXT NOT NULL DEFAULT '',
    visibility       TEXT NOT NULL CHECK (visibility IN ('public', 'connections_only', 'owner')),
    state            TEXT NOT NULL CHECK (state IN ('self_declared', 'has_evidence', 'attested', 'trusted_org')),
    created_at       INTEGER NOT NULL,
    verified_at      INTEGER,
    expires_at       INTEGER,
    expired          INTEGER NOT NULL DEFAULT 0,
    attestation_ref  TEXT,
    attestor_id      TEXT,
    updated_at       INTEGER NOT NULL,
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_claims_owner ON claims(owner_id);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
