package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/model"
)

const claimColumns = `id, owner_id, topic, summary, visibility, state, created_at,
	verified_at, expires_at, expired, attestation_ref, attestor_id`

// CreateClaim inserts c, assigning an id and creation time when missing.
// It returns the stored claim.
func (db *DB) CreateClaim(c model.Claim) (model.Claim, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Topic == "" {
		c.Topic = model.TopicOther
	}
	if err := c.Validate(); err != nil {
		return c, err
	}

	_, err := db.Exec(`
		INSERT INTO claims (`+claimColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id, topic = excluded.topic, summary = excluded.summary,
			visibility = excluded.visibility, state = excluded.state, created_at = excluded.created_at,
			verified_at = excluded.verified_at, expires_at = excluded.expires_at, expired = excluded.expired,
			attestation_ref = excluded.attestation_ref, attestor_id = excluded.attestor_id,
			updated_at = excluded.updated_at
	`,
		c.ID, c.OwnerID, string(c.Topic), c.Summary, string(c.Visibility), string(c.State),
		c.CreatedAt.UnixMilli(), nullTime(c.VerifiedAt), nullTime(c.ExpiresAt), boolToInt(c.Expired),
		nullString(c.AttestationRef), nullString(c.AttestorID), time.Now().UnixMilli(),
	)
	if err != nil {
		return c, fmt.Errorf("create claim %s: %w", c.ID, err)
	}
	return c, nil
}

// GetClaim returns the claim with id, or gatekeeper.ErrNotFound.
func (db *DB) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	row := db.QueryRowContext(ctx, "SELECT "+claimColumns+" FROM claims WHERE id = ?", id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("claim %s: %w", id, gatekeeper.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return &c, nil
}

// ClaimsByOwner returns ownerID's claims, oldest first.
func (db *DB) ClaimsByOwner(ctx context.Context, ownerID string) ([]model.Claim, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+claimColumns+" FROM claims WHERE owner_id = ? ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("claims by owner: %w", err)
	}
	defer rows.Close()

	var out []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateClaimState moves a claim to a new verification state. Reaching
// attested or trusted_org stamps verified_at.
func (db *DB) UpdateClaimState(id string, state model.VerificationState, attestorID, ref string) error {
	if !state.Valid() {
		return fmt.Errorf("%w: unknown verification state %q", model.ErrInvalidClaimData, state)
	}
	now := time.Now().UnixMilli()

	var verifiedAt any
	if state == model.StateAttested || state == model.StateTrustedOrg {
		verifiedAt = now
	}

	res, err := db.Exec(`
		UPDATE claims SET state = ?, attestor_id = COALESCE(?, attestor_id),
			attestation_ref = COALESCE(?, attestation_ref),
			verified_at = COALESCE(?, verified_at), updated_at = ?
		WHERE id = ?
	`, string(state), nullString(attestorID), nullString(ref), verifiedAt, now, id)
	if err != nil {
		return fmt.Errorf("update claim state: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("claim %s: %w", id, gatekeeper.ErrNotFound)
	}
	return nil
}

// DeleteClaim removes a claim owned by ownerID.
func (db *DB) DeleteClaim(id, ownerID string) error {
	res, err := db.Exec("DELETE FROM claims WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("claim %s: %w", id, gatekeeper.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(s scanner) (model.Claim, error) {
	var c model.Claim
	var topic, vis, state string
	var created int64
	var verified, expires sql.NullInt64
	var expired int
	var ref, attestor sql.NullString

	err := s.Scan(&c.ID, &c.OwnerID, &topic, &c.Summary, &vis, &state, &created,
		&verified, &expires, &expired, &ref, &attestor)
	if err != nil {
		return c, err
	}
	c.Topic = model.Topic(topic)
	c.Visibility = model.Visibility(vis)
	c.State = model.VerificationState(state)
	c.CreatedAt = time.UnixMilli(created).UTC()
	c.VerifiedAt = timePtr(verified)
	c.ExpiresAt = timePtr(expires)
	c.Expired = expired != 0
	c.AttestationRef = ref.String
	c.AttestorID = attestor.String
	return c, nil
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
