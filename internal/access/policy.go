package access

import (
	"encoding/json"
	"sort"

	"github.com/lazypower/claimgate/internal/model"
)

// TagSet is a set of visibility tags.
type TagSet map[model.Visibility]struct{}

func newTagSet(tags ...model.Visibility) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is in the set.
func (s TagSet) Has(t model.Visibility) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []model.Visibility {
	out := make([]model.Visibility, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// Decision is what a viewer may see on a target's claims.
// IsOwner bypasses every later filter, including the confidence floor.
type Decision struct {
	Relationships KindSet `json:"relationships"`
	Tags          TagSet  `json:"allowed_tags"`
	IsOwner       bool    `json:"is_owner"`
}

// Allows reports whether a claim tagged t passes the decision.
func (d Decision) Allows(t model.Visibility) bool {
	return d.IsOwner || d.Tags.Has(t)
}

// Policy maps each non-owner relationship kind to the tags it unlocks.
// Kinds share a tag set today; they are kept separate so one can narrow
// without touching the resolver or the pipeline.
type Policy map[Kind][]model.Visibility

// DefaultPolicy is the standard table.
var DefaultPolicy = Policy{
	Friend:     {model.VisibilityConnectionsOnly, model.VisibilityPublic},
	Colleague:  {model.VisibilityConnectionsOnly, model.VisibilityPublic},
	Recruiting: {model.VisibilityConnectionsOnly, model.VisibilityPublic},
	Stranger:   {model.VisibilityPublic},
}

// Allowed derives the decision for kinds. An empty set is treated as
// STRANGER; kinds missing from the table contribute nothing.
func (p Policy) Allowed(kinds KindSet) Decision {
	if kinds.Has(Self) {
		return Decision{
			Relationships: NewKindSet(Self),
			Tags:          newTagSet(model.VisibilityPublic, model.VisibilityConnectionsOnly, model.VisibilityOwner),
			IsOwner:       true,
		}
	}
	if len(kinds) == 0 {
		kinds = NewKindSet(Stranger)
	}

	tags := make(TagSet)
	for k := range kinds {
		for _, t := range p[k] {
			tags[t] = struct{}{}
		}
	}
	return Decision{Relationships: kinds, Tags: tags}
}

// AllowedTags applies DefaultPolicy.
func AllowedTags(kinds KindSet) Decision {
	return DefaultPolicy.Allowed(kinds)
}
