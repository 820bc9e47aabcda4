package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lazypower/claimgate/internal/access"
	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/model"
	"github.com/lazypower/claimgate/internal/registry"
)

func seedUsers(t *testing.T, db *DB) {
	t.Helper()
	users := []model.User{
		{ID: "u1", Name: "Linh", Roles: []model.Role{model.RoleFreelancer}},
		{ID: "u2", Name: "Minh", Roles: []model.Role{model.RoleFreelancer}},
		{ID: "recruiter1", Name: "Hoa", Roles: []model.Role{model.RoleRecruiter}},
		{ID: "org-fpt", Name: "FPT", Roles: []model.Role{model.RoleOrganization}, Trusted: true},
		{ID: "org-small", Name: "Small Co", Roles: []model.Role{model.RoleOrganization}},
	}
	for _, u := range users {
		if err := db.UpsertUser(u); err != nil {
			t.Fatalf("UpsertUser(%s): %v", u.ID, err)
		}
	}
}

func TestUsersRoundTrip(t *testing.T) {
	db := testDB(t)
	seedUsers(t, db)
	ctx := context.Background()

	u, err := db.GetUser(ctx, "org-fpt")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.Trusted || !u.HasRole(model.RoleOrganization) {
		t.Errorf("org-fpt = %+v, want trusted organization", u)
	}

	if _, err := db.GetUser(ctx, "ghost"); !errors.Is(err, gatekeeper.ErrNotFound) {
		t.Errorf("GetUser(ghost) err = %v, want ErrNotFound", err)
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 5 {
		t.Errorf("len(users) = %d, want 5", len(users))
	}

	// Upsert replaces roles.
	if err := db.UpsertUser(model.User{ID: "u1", Name: "Linh", Roles: []model.Role{model.RoleVerifier}}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	u, _ = db.GetUser(ctx, "u1")
	if len(u.Roles) != 1 || u.Roles[0] != model.RoleVerifier {
		t.Errorf("roles = %v, want [verifier]", u.Roles)
	}
}

func TestIsTrustedOrg(t *testing.T) {
	db := testDB(t)
	seedUsers(t, db)
	ctx := context.Background()

	tests := []struct {
		id   string
		want bool
	}{
		{"org-fpt", true},
		{"org-small", false},
		{"u1", false},
		{"ghost", false},
	}
	for _, tt := range tests {
		got, err := db.IsTrustedOrg(ctx, tt.id)
		if err != nil {
			t.Fatalf("IsTrustedOrg(%s): %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("IsTrustedOrg(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestEdgesBetween(t *testing.T) {
	db := testDB(t)
	seedUsers(t, db)

	edges := []model.Edge{
		{From: "u1", To: "u2", Kind: model.EdgeFriend},
		{From: "u2", To: "u1", Kind: model.EdgeColleague},
		{From: "recruiter1", To: "u1", Kind: model.EdgeRecruiting},
	}
	for _, e := range edges {
		if err := db.AddEdge(e); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	// duplicate is a no-op
	if err := db.AddEdge(edges[0]); err != nil {
		t.Fatalf("AddEdge duplicate: %v", err)
	}
	if err := db.AddEdge(model.Edge{From: "u1", To: "u2", Kind: "ENEMY"}); err == nil {
		t.Error("AddEdge with unknown kind: want error")
	}

	got, err := db.EdgesBetween(context.Background(), "u2", "u1")
	if err != nil {
		t.Fatalf("EdgesBetween: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(edges) = %d, want 2: %v", len(got), got)
	}

	if err := db.RemoveEdge(edges[0]); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	got, _ = db.EdgesBetween(context.Background(), "u1", "u2")
	if len(got) != 1 || got[0].Kind != model.EdgeColleague {
		t.Errorf("after remove = %v, want one COLLEAGUE edge", got)
	}
}

func TestClaimsRoundTrip(t *testing.T) {
	db := testDB(t)
	seedUsers(t, db)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c, err := db.CreateClaim(model.Claim{
		OwnerID:    "u1",
		Topic:      model.TopicCertificate,
		Summary:    "AWS Solutions Architect",
		Visibility: model.VisibilityConnectionsOnly,
		State:      model.StateHasEvidence,
		CreatedAt:  created,
		ExpiresAt:  &expires,
	})
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	if c.ID == "" {
		t.Fatal("CreateClaim did not assign an id")
	}

	got, err := db.GetClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClaim: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
	if got.VerifiedAt != nil {
		t.Errorf("VerifiedAt = %v, want nil", got.VerifiedAt)
	}

	if err := db.UpdateClaimState(c.ID, model.StateAttested, "org-fpt", "0xabc"); err != nil {
		t.Fatalf("UpdateClaimState: %v", err)
	}
	got, _ = db.GetClaim(ctx, c.ID)
	if got.State != model.StateAttested || got.AttestorID != "org-fpt" || got.AttestationRef != "0xabc" {
		t.Errorf("after attest = %+v", got)
	}
	if got.VerifiedAt == nil {
		t.Error("VerifiedAt not stamped on attestation")
	}

	if err := db.UpdateClaimState("missing", model.StateAttested, "", ""); !errors.Is(err, gatekeeper.ErrNotFound) {
		t.Errorf("UpdateClaimState(missing) err = %v, want ErrNotFound", err)
	}

	if err := db.DeleteClaim(c.ID, "u2"); !errors.Is(err, gatekeeper.ErrNotFound) {
		t.Errorf("DeleteClaim by non-owner err = %v, want ErrNotFound", err)
	}
	if err := db.DeleteClaim(c.ID, "u1"); err != nil {
		t.Fatalf("DeleteClaim: %v", err)
	}
	if _, err := db.GetClaim(ctx, c.ID); !errors.Is(err, gatekeeper.ErrNotFound) {
		t.Errorf("GetClaim after delete err = %v, want ErrNotFound", err)
	}
}

func TestCreateClaimRejectsInvalid(t *testing.T) {
	db := testDB(t)
	seedUsers(t, db)

	_, err := db.CreateClaim(model.Claim{OwnerID: "u1", Visibility: "friends", State: model.StateAttested})
	if !errors.Is(err, model.ErrInvalidClaimData) {
		t.Errorf("err = %v, want ErrInvalidClaimData", err)
	}
}

func TestSourceSnapshot(t *testing.T) {
	db := testDB(t)
	seedUsers(t, db)
	ctx := context.Background()

	db.AddEdge(model.Edge{From: "recruiter1", To: "u1", Kind: model.EdgeRecruiting})
	db.AddEdge(model.Edge{From: "u2", To: "u1", Kind: model.EdgeFriend})

	claims := []model.Claim{
		{ID: "c1", OwnerID: "u1", Visibility: model.VisibilityPublic, State: model.StateAttested, AttestorID: "org-fpt"},
		{ID: "c2", OwnerID: "u1", Visibility: model.VisibilityPublic, State: model.StateAttested, AttestorID: "org-small"},
		{ID: "c3", OwnerID: "u2", Visibility: model.VisibilityPublic, State: model.StateSelfDeclared},
	}
	for _, c := range claims {
		if _, err := db.CreateClaim(c); err != nil {
			t.Fatalf("CreateClaim: %v", err)
		}
	}

	for _, trusted := range []registry.TrustedOrgs{nil, registry.NewCached(db.IsTrustedOrg, time.Minute, nil)} {
		snap, err := NewSource(db, trusted).Snapshot(ctx, "recruiter1", "u1")
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if len(snap.Claims) != 2 {
			t.Errorf("len(claims) = %d, want 2", len(snap.Claims))
		}
		if len(snap.Graph.Edges()) != 1 {
			t.Errorf("len(edges) = %d, want 1", len(snap.Graph.Edges()))
		}
		if !snap.Trusted.IsTrusted("org-fpt") || snap.Trusted.IsTrusted("org-small") {
			t.Error("trust snapshot wrong")
		}

		kinds, err := access.Resolve("recruiter1", "u1", snap.Graph)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !kinds.Has(access.Recruiting) {
			t.Errorf("kinds = %v, want RECRUITING", kinds.Sorted())
		}
	}

	snap, err := NewSource(db, nil).Snapshot(ctx, "ghost", "u1")
	if err != nil {
		t.Fatalf("Snapshot(ghost): %v", err)
	}
	if _, err := access.Resolve("ghost", "u1", snap.Graph); !errors.Is(err, access.ErrInvalidRelationshipInput) {
		t.Errorf("Resolve(ghost) err = %v, want ErrInvalidRelationshipInput", err)
	}
}

func TestSourceFeedsPipeline(t *testing.T) {
	db := testDB(t)
	seedUsers(t, db)
	now := time.Now().UTC()

	db.CreateClaim(model.Claim{ID: "pub", OwnerID: "u1", Visibility: model.VisibilityPublic, State: model.StateTrustedOrg, CreatedAt: now.AddDate(0, 0, -1)})
	db.CreateClaim(model.Claim{ID: "own", OwnerID: "u1", Visibility: model.VisibilityOwner, State: model.StateSelfDeclared, CreatedAt: now.AddDate(0, 0, -1)})
	db.AddEdge(model.Edge{From: "recruiter1", To: "u1", Kind: model.EdgeRecruiting})

	p := gatekeeper.New(gatekeeper.Options{})
	res, err := p.Run(context.Background(), NewSource(db, nil), gatekeeper.Query{
		ViewerID:   "recruiter1",
		TargetID:   "u1",
		Similarity: map[string]float64{"pub": 0.5},
		Now:        now,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Claims) != 1 || res.Claims[0].Claim.ID != "pub" {
		t.Errorf("claims = %+v, want only pub", res.Claims)
	}
}
