// Package model holds the records shared by the stores and the retrieval
// pipeline: users, relationship edges and claims.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidClaimData marks a candidate claim that cannot be scored.
var ErrInvalidClaimData = errors.New("invalid claim data")

// Role is a user role tag.
type Role string

const (
	RoleFreelancer   Role = "freelancer"
	RoleRecruiter    Role = "recruiter"
	RoleVerifier     Role = "verifier"
	RoleOrganization Role = "organization"
)

// User is a participant in the social graph.
type User struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Roles      []Role  `json:"roles,omitempty" yaml:"roles,omitempty"`
	Reputation float64 `json:"reputation" yaml:"reputation"`
	Trusted    bool    `json:"trusted,omitempty" yaml:"trusted,omitempty"` // organizations only
}

// HasRole reports whether u carries role r.
func (u User) HasRole(r Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// EdgeKind is the label on a social-graph edge.
type EdgeKind string

const (
	EdgeFriend     EdgeKind = "FRIEND"
	EdgeColleague  EdgeKind = "COLLEAGUE"
	EdgeRecruiting EdgeKind = "RECRUITING"
)

// Valid reports whether k is a known edge kind.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeFriend, EdgeColleague, EdgeRecruiting:
		return true
	}
	return false
}

// Symmetric reports whether the edge holds in both directions.
// RECRUITING only points from recruiter to candidate.
func (k EdgeKind) Symmetric() bool {
	return k != EdgeRecruiting
}

// Edge connects two users.
type Edge struct {
	From string   `json:"from" yaml:"from"`
	To   string   `json:"to" yaml:"to"`
	Kind EdgeKind `json:"kind" yaml:"kind"`
}

// Connects reports whether e relates viewer to target, honouring direction.
func (e Edge) Connects(viewer, target string) bool {
	if e.From == viewer && e.To == target {
		return true
	}
	return e.Kind.Symmetric() && e.From == target && e.To == viewer
}

// Visibility is the minimum relationship needed to see a claim.
type Visibility string

const (
	VisibilityPublic          Visibility = "public"
	VisibilityConnectionsOnly Visibility = "connections_only"
	VisibilityOwner           Visibility = "owner"
)

// Valid reports whether v is a known visibility tag.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityConnectionsOnly, VisibilityOwner:
		return true
	}
	return false
}

// VerificationState is the provenance tier of a claim.
type VerificationState string

const (
	StateSelfDeclared VerificationState = "self_declared"
	StateHasEvidence  VerificationState = "has_evidence"
	StateAttested     VerificationState = "attested"
	StateTrustedOrg   VerificationState = "trusted_org"
)

// Valid reports whether s is a known verification state.
func (s VerificationState) Valid() bool {
	switch s {
	case StateSelfDeclared, StateHasEvidence, StateAttested, StateTrustedOrg:
		return true
	}
	return false
}

// Topic classifies what a claim is about.
type Topic string

const (
	TopicSkill          Topic = "skill"
	TopicProject        Topic = "project"
	TopicWorkExperience Topic = "work_experience"
	TopicEducation      Topic = "education"
	TopicCertificate    Topic = "certificate"
	TopicAchievement    Topic = "achievement"
	TopicOther          Topic = "other"
)

// Claim is a statement about a user. The pipeline never mutates one.
type Claim struct {
	ID             string            `json:"id" yaml:"id"`
	OwnerID        string            `json:"owner_id" yaml:"owner_id"`
	Topic          Topic             `json:"topic" yaml:"topic"`
	Summary        string            `json:"summary" yaml:"summary"`
	Visibility     Visibility        `json:"visibility" yaml:"visibility"`
	State          VerificationState `json:"state" yaml:"state"`
	CreatedAt      time.Time         `json:"created_at" yaml:"created_at"`
	VerifiedAt     *time.Time        `json:"verified_at,omitempty" yaml:"verified_at,omitempty"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired        bool              `json:"expired,omitempty" yaml:"expired,omitempty"`
	AttestationRef string            `json:"attestation_ref,omitempty" yaml:"attestation_ref,omitempty"`
	AttestorID     string            `json:"attestor_id,omitempty" yaml:"attestor_id,omitempty"`
}

// Timestamp is the instant freshness is measured from: verification time
// when known, creation time otherwise.
func (c Claim) Timestamp() time.Time {
	if c.VerifiedAt != nil && !c.VerifiedAt.IsZero() {
		return *c.VerifiedAt
	}
	return c.CreatedAt
}

// IsExpired reports whether c is flagged expired or past its end date at now.
func (c Claim) IsExpired(now time.Time) bool {
	if c.Expired {
		return true
	}
	return c.ExpiresAt != nil && !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

// Validate checks the fields the pipeline depends on.
func (c Claim) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidClaimData)
	case c.Timestamp().IsZero():
		return fmt.Errorf("%w: claim %s: missing timestamp", ErrInvalidClaimData, c.ID)
	case !c.Visibility.Valid():
		return fmt.Errorf("%w: claim %s: unknown visibility %q", ErrInvalidClaimData, c.ID, c.Visibility)
	case !c.State.Valid():
		return fmt.Errorf("%w: claim %s: unknown verification state %q", ErrInvalidClaimData, c.ID, c.State)
	}
	return nil
}
