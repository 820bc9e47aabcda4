package graphdb

import (
	"time"

	"github.com/lazypower/claimgate/internal/model"
)

var relTypes = map[model.EdgeKind]string{
	model.EdgeFriend:     "FRIENDS_WITH",
	model.EdgeColleague:  "WORKS_WITH",
	model.EdgeRecruiting: "RECRUITING",
}

var edgeKinds = map[string]model.EdgeKind{
	"FRIENDS_WITH": model.EdgeFriend,
	"WORKS_WITH":   model.EdgeColleague,
	"RECRUITING":   model.EdgeRecruiting,
}

func edgeFromRow(row map[string]any) (model.Edge, bool) {
	kind, ok := edgeKinds[asString(row["kind"])]
	if !ok {
		return model.Edge{}, false
	}
	return model.Edge{From: asString(row["from"]), To: asString(row["to"]), Kind: kind}, true
}

// claimFromRow maps a claims query row. Bad values pass through unchanged
// so the pipeline can report them.
func claimFromRow(row map[string]any) model.Claim {
	c := model.Claim{
		ID:             asString(row["id"]),
		OwnerID:        asString(row["owner_id"]),
		Topic:          model.Topic(asString(row["topic"])),
		Summary:        asString(row["summary"]),
		Visibility:     model.Visibility(asString(row["visibility"])),
		State:          model.VerificationState(asString(row["state"])),
		Expired:        asBool(row["expired"]),
		AttestationRef: asString(row["attestation_ref"]),
		AttestorID:     asString(row["attestor_id"]),
	}
	if t := asTime(row["created_at"]); t != nil {
		c.CreatedAt = *t
	}
	c.VerifiedAt = asTime(row["verified_at"])
	c.ExpiresAt = asTime(row["expires_at"])
	return c
}

func claimParams(c model.Claim) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"owner_id":        c.OwnerID,
		"topic":           string(c.Topic),
		"summary":         c.Summary,
		"visibility":      string(c.Visibility),
		"state":           string(c.State),
		"created_at":      millis(&c.CreatedAt),
		"verified_at":     millis(c.VerifiedAt),
		"expires_at":      millis(c.ExpiresAt),
		"expired":         c.Expired,
		"attestation_ref": c.AttestationRef,
		"attestor_id":     c.AttestorID,
	}
}

func millis(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// asTime accepts epoch milliseconds or a driver temporal value.
func asTime(v any) *time.Time {
	var t time.Time
	switch x := v.(type) {
	case int64:
		t = time.UnixMilli(x).UTC()
	case float64:
		t = time.UnixMilli(int64(x)).UTC()
	case time.Time:
		t = x.UTC()
	default:
		return nil
	}
	return &t
}

func userFromRow(row map[string]any) model.User {
	u := model.User{
		ID:      asString(row["id"]),
		Name:    asString(row["name"]),
		Trusted: asBool(row["trusted"]),
	}
	switch r := row["reputation"].(type) {
	case float64:
		u.Reputation = r
	case int64:
		u.Reputation = float64(r)
	}
	if roles, ok := row["roles"].([]any); ok {
		for _, r := range roles {
			if s := asString(r); s != "" {
				u.Roles = append(u.Roles, model.Role(s))
			}
		}
	}
	return u
}
