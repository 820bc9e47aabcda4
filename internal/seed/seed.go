// Package seed loads YAML fixtures of users, relationships and claims into a
// store. Claim times may be given relative to the load time so demo data
// keeps its freshness profile.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lazypower/claimgate/internal/model"
	"github.com/lazypower/claimgate/internal/store"
)

//go:embed demo.yaml
var demoFixture []byte

// Fixture is a seed file.
type Fixture struct {
	Users  []model.User   `yaml:"users"`
	Edges  []model.Edge   `yaml:"edges"`
	Claims []ClaimFixture `yaml:"claims"`
}

// ClaimFixture is a claim with optional relative times. Relative fields win
// over the absolute ones.
type ClaimFixture struct {
	model.Claim     `yaml:",inline"`
	AgeDays         *int `yaml:"age_days,omitempty"`
	VerifiedAgeDays *int `yaml:"verified_age_days,omitempty"`
	ExpiresInDays   *int `yaml:"expires_in_days,omitempty"`
}

// Resolve returns the claim with relative times anchored at now.
func (f ClaimFixture) Resolve(now time.Time) model.Claim {
	c := f.Claim
	if f.AgeDays != nil {
		c.CreatedAt = daysBefore(now, *f.AgeDays)
	}
	if f.VerifiedAgeDays != nil {
		t := daysBefore(now, *f.VerifiedAgeDays)
		c.VerifiedAt = &t
	}
	if f.ExpiresInDays != nil {
		t := daysBefore(now, -*f.ExpiresInDays)
		c.ExpiresAt = &t
	}
	return c
}

func daysBefore(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour).UTC()
}

// Parse decodes a fixture and checks its references.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and parses a fixture file.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Demo returns the built-in demo fixture.
func Demo() *Fixture {
	f, err := Parse(demoFixture)
	if err != nil {
		panic("seed: demo fixture: " + err.Error())
	}
	return f
}

func (f *Fixture) check() error {
	users := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		if u.ID == "" {
			return fmt.Errorf("fixture: user without id")
		}
		if users[u.ID] {
			return fmt.Errorf("fixture: duplicate user %q", u.ID)
		}
		users[u.ID] = true
	}
	for _, e := range f.Edges {
		if !e.Kind.Valid() {
			return fmt.Errorf("fixture: edge %s->%s: unknown kind %q", e.From, e.To, e.Kind)
		}
		if !users[e.From] || !users[e.To] {
			return fmt.Errorf("fixture: edge %s->%s references an unknown user", e.From, e.To)
		}
	}
	for _, c := range f.Claims {
		if !users[c.OwnerID] {
			return fmt.Errorf("fixture: claim %q owned by unknown user %q", c.ID, c.OwnerID)
		}
	}
	return nil
}

// Writer is the store a fixture is applied to.
type Writer interface {
	UpsertUser(ctx context.Context, u model.User) error
	AddEdge(ctx context.Context, e model.Edge) error
	CreateClaim(ctx context.Context, c model.Claim) (model.Claim, error)
}

// Stats counts applied records.
type Stats struct {
	Users  int
	Edges  int
	Claims int
}

// Apply writes users, then edges, then claims. It stops at the first error.
func (f *Fixture) Apply(ctx context.Context, w Writer, now time.Time) (Stats, error) {
	var st Stats
	for _, u := range f.Users {
		if err := w.UpsertUser(ctx, u); err != nil {
			return st, err
		}
		st.Users++
	}
	for _, e := range f.Edges {
		if err := w.AddEdge(ctx, e); err != nil {
			return st, err
		}
		st.Edges++
	}
	for _, cf := range f.Claims {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if _, err := w.CreateClaim(ctx, cf.Resolve(now)); err != nil {
			return st, fmt.Errorf("claim %q: %w", cf.ID, err)
		}
		st.Claims++
	}
	return st, nil
}

// StoreWriter adapts a SQLite store to Writer.
type StoreWriter struct {
	DB *store.DB
}

func (s StoreWriter) UpsertUser(_ context.Context, u model.User) error {
	return s.DB.UpsertUser(u)
}

func (s StoreWriter) AddEdge(_ context.Context, e model.Edge) error {
	return s.DB.AddEdge(e)
}

func (s StoreWriter) CreateClaim(_ context.Context, c model.Claim) (model.Claim, error) {
	return s.DB.CreateClaim(c)
}
