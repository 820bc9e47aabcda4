// Package registry answers whether an attesting organization is trusted.
package registry

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TrustedOrgs reports whether an organization's attestations earn the top
// confidence tier.
type TrustedOrgs interface {
	IsTrusted(orgID string) bool
}

// Static is a fixed set of trusted organization ids.
type Static struct {
	mu   sync.RWMutex
	orgs map[string]struct{}
}

// NewStatic builds a registry from ids. Matching is case-insensitive.
func NewStatic(ids ...string) *Static {
	s := &Static{orgs: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.orgs[normalize(id)] = struct{}{}
	}
	return s
}

// IsTrusted implements TrustedOrgs.
func (s *Static) IsTrusted(orgID string) bool {
	if orgID == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.orgs[normalize(orgID)]
	return ok
}

// Add registers orgID as trusted.
func (s *Static) Add(orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[normalize(orgID)] = struct{}{}
}

// IDs returns the registered ids.
func (s *Static) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.orgs))
	for id := range s.orgs {
		out = append(out, id)
	}
	return out
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// LookupFunc asks a backing store whether orgID is trusted.
type LookupFunc func(ctx context.Context, orgID string) (bool, error)

// Cached memoizes a LookupFunc with a TTL. Lookup errors are logged and
// treated as untrusted; they are not cached.
type Cached struct {
	lookup  LookupFunc
	cache   *gocache.Cache
	timeout time.Duration
	log     *slog.Logger
}

// NewCached wraps lookup with a go-cache of the given TTL.
func NewCached(lookup LookupFunc, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		lookup:  lookup,
		cache:   gocache.New(ttl, 2*ttl),
		timeout: 5 * time.Second,
		log:     logger,
	}
}

// IsTrusted implements TrustedOrgs.
func (c *Cached) IsTrusted(orgID string) bool {
	if orgID == "" {
		return false
	}
	key := normalize(orgID)
	if v, found := c.cache.Get(key); found {
		return v.(bool)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	trusted, err := c.lookup(ctx, orgID)
	if err != nil {
		c.log.Warn("trusted org lookup failed", "org", orgID, "error", err)
		return false
	}
	c.cache.SetDefault(key, trusted)
	return trusted
}

// Invalidate drops a cached answer, or all answers when orgID is empty.
func (c *Cached) Invalidate(orgID string) {
	if orgID == "" {
		c.cache.Flush()
		return
	}
	c.cache.Delete(normalize(orgID))
}

// Snapshot freezes the answers for a set of org ids so that a single
// retrieval sees a consistent view.
func Snapshot(src TrustedOrgs, orgIDs []string) *Static {
	s := NewStatic()
	for _, id := range orgIDs {
		if src != nil && src.IsTrusted(id) {
			s.Add(id)
		}
	}
	return s
}
