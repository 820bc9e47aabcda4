// Package access decides which of a target user's claims a viewer may see.
//
// Resolution produces a set of relationship kinds rather than a single one:
// two users can be friends and colleagues at the same time, and the policy
// table is a union over whatever kinds apply.
package access

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lazypower/claimgate/internal/model"
)

// ErrInvalidRelationshipInput is returned for empty or unknown user ids.
var ErrInvalidRelationshipInput = errors.New("invalid relationship input")

// Kind classifies how a viewer relates to a target.
type Kind string

const (
	Self       Kind = "SELF"
	Friend     Kind = "FRIEND"
	Colleague  Kind = "COLLEAGUE"
	Recruiting Kind = "RECRUITING"
	Stranger   Kind = "STRANGER"
)

// KindSet is a set of relationship kinds.
type KindSet map[Kind]struct{}

// NewKindSet builds a set from kinds.
func NewKindSet(kinds ...Kind) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the kinds in lexical order.
func (s KindSet) Sorted() []Kind {
	out := make([]Kind, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s KindSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

var edgeKinds = map[model.EdgeKind]Kind{
	model.EdgeFriend:     Friend,
	model.EdgeColleague:  Colleague,
	model.EdgeRecruiting: Recruiting,
}

// Graph is a read-only snapshot of the users and edges relevant to a request.
type Graph struct {
	users map[string]struct{}
	edges []model.Edge
}

// NewGraph builds a snapshot. Edges are copied.
func NewGraph(userIDs []string, edges []model.Edge) *Graph {
	g := &Graph{
		users: make(map[string]struct{}, len(userIDs)),
		edges: append([]model.Edge(nil), edges...),
	}
	for _, id := range userIDs {
		g.users[id] = struct{}{}
	}
	return g
}

// HasUser reports whether id is known to the graph.
func (g *Graph) HasUser(id string) bool {
	if g == nil {
		return false
	}
	_, ok := g.users[id]
	return ok
}

// Edges returns the snapshot's edges.
func (g *Graph) Edges() []model.Edge {
	if g == nil {
		return nil
	}
	return g.edges
}

// Resolve classifies the relationship from viewerID to targetID.
// The result is never empty: SELF alone, STRANGER alone, or the union of
// every edge kind connecting the pair.
func Resolve(viewerID, targetID string, g *Graph) (KindSet, error) {
	if viewerID == "" || targetID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidRelationshipInput)
	}
	if !g.HasUser(viewerID) {
		return nil, fmt.Errorf("%w: unknown viewer %q", ErrInvalidRelationshipInput, viewerID)
	}
	if !g.HasUser(targetID) {
		return nil, fmt.Errorf("%w: unknown target %q", ErrInvalidRelationshipInput, targetID)
	}

	if viewerID == targetID {
		return NewKindSet(Self), nil
	}

	kinds := make(KindSet)
	for _, e := range g.edges {
		k, ok := edgeKinds[e.Kind]
		if !ok || !e.Connects(viewerID, targetID) {
			continue
		}
		kinds[k] = struct{}{}
	}
	if len(kinds) == 0 {
		kinds[Stranger] = struct{}{}
	}
	return kinds, nil
}
