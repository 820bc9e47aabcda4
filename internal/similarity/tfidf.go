// Package similarity provides a lexical fallback scorer for callers that
// send query text instead of precomputed similarity scores. Production
// deployments are expected to supply scores from a vector search service.
package similarity

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/lazypower/claimgate/internal/model"
)

// TFIDF scores claims by cosine similarity of TF-IDF vectors built over the
// claims passed to each call. It keeps no state between calls.
type TFIDF struct {
	maxTerms int
}

// NewTFIDF creates a scorer with a vocabulary capped at maxTerms.
func NewTFIDF(maxTerms int) *TFIDF {
	if maxTerms <= 0 {
		maxTerms = 512
	}
	return &TFIDF{maxTerms: maxTerms}
}

// Score returns a similarity in [0, 1] for every claim.
func (t *TFIDF) Score(ctx context.Context, query string, claims []model.Claim) (map[string]float64, error) {
	docs := make([]string, len(claims))
	for i, c := range claims {
		docs[i] = claimText(c)
	}
	v := buildVocab(docs, t.maxTerms)

	q := v.embed(query)
	out := make(map[string]float64, len(claims))
	for i, c := range claims {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[c.ID] = CosineSimilarity(q, v.embed(docs[i]))
	}
	return out, nil
}

func claimText(c model.Claim) string {
	return string(c.Topic) + " " + c.Summary
}

type vocab struct {
	terms []string
	idf   map[string]float64
}

func buildVocab(docs []string, maxTerms int) vocab {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range tokenize(doc) {
			if !seen[term] {
				df[term]++
				seen[term] = true
			}
		}
	}

	type termFreq struct {
		term string
		freq int
	}
	terms := make([]termFreq, 0, len(df))
	for t, f := range df {
		terms = append(terms, termFreq{t, f})
	}
	// term breaks frequency ties so the vocabulary is deterministic
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].freq != terms[j].freq {
			return terms[i].freq > terms[j].freq
		}
		return terms[i].term < terms[j].term
	})
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}

	numDocs := float64(len(docs))
	if numDocs == 0 {
		numDocs = 1
	}
	v := vocab{
		terms: make([]string, len(terms)),
		idf:   make(map[string]float64, len(terms)),
	}
	for i, tf := range terms {
		v.terms[i] = tf.term
		// smoothed: log(N/df) + 1
		v.idf[tf.term] = math.Log(numDocs/float64(tf.freq)) + 1.0
	}
	return v
}

func (v vocab) embed(text string) []float64 {
	vec := make([]float64, len(v.terms))
	tokens := tokenize(text)
	if len(tokens) == 0 || len(vec) == 0 {
		return vec
	}

	tf := make(map[string]int)
	maxTF := 0
	for _, tok := range tokens {
		tf[tok]++
		if tf[tok] > maxTF {
			maxTF = tf[tok]
		}
	}

	for i, term := range v.terms {
		count := tf[term]
		if count == 0 {
			continue
		}
		augTF := 0.5 + 0.5*float64(count)/float64(maxTF)
		vec[i] = augTF * v.idf[term]
	}
	normalize(vec)
	return vec
}

// tokenize lowercases text and splits on anything that is not a letter,
// digit, '-' or '_'. Single-rune tokens are dropped.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var current []rune
	flush := func() {
		if len(current) > 1 {
			tokens = append(tokens, string(current))
		}
		current = current[:0]
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			current = append(current, r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

// CosineSimilarity computes the cosine of the angle between a and b,
// clamped to [0, 1]. Mismatched or empty vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, dot/denom))
}
