// Package match decides which enrolled identity, if any, a face embedding
// belongs to.
//
// The decision is first-match: candidates are scanned in order and the first
// one within tolerance wins, even if a later candidate is closer. Callers that
// want nearest-match must sort candidates themselves (see Nearest).
package match

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

// DefaultTolerance is the maximum Euclidean distance accepted as a match.
const DefaultTolerance = 0.6

// Candidate is one entry of the working set in iteration order.
type Candidate struct {
	IdentityID  uuid.UUID
	DisplayName string
	Embedding   domain.Embedding
}

// Distance is the Euclidean distance between two embeddings of equal length.
func Distance(a, b domain.Embedding) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Engine matches query embeddings against a candidate list.
type Engine struct {
	tolerance float64
	dimension int
}

// NewEngine builds an engine. dimension 0 disables the length check.
func NewEngine(tolerance float64, dimension int) *Engine {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Engine{tolerance: tolerance, dimension: dimension}
}

func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// Match returns the result for query against candidates. Confidence is
// 1 - distance and is not clamped, so it goes negative past distance 1.
// An unmatched result carries the smallest distance seen (0 without
// candidates) and zero confidence.
func (e *Engine) Match(query domain.Embedding, candidates []Candidate) (domain.MatchResult, error) {
	if e.dimension > 0 {
		if err := query.CheckDimension(e.dimension); err != nil {
			return domain.MatchResult{}, err
		}
	}

	nearest := math.Inf(1)
	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			return domain.MatchResult{}, domain.ErrInvalidEmbedding.WithError(fmt.Errorf(
				"candidate %s has %d components, query has %d", c.IdentityID, len(c.Embedding), len(query)))
		}

		d := Distance(query, c.Embedding)
		if d <= e.tolerance {
			return domain.MatchResult{
				IdentityID:  c.IdentityID,
				DisplayName: c.DisplayName,
				Confidence:  1 - d,
				Distance:    d,
			}, nil
		}
		nearest = math.Min(nearest, d)
	}

	if math.IsInf(nearest, 1) {
		nearest = 0
	}
	return domain.MatchResult{Distance: nearest}, nil
}

// Nearest ranks candidates by distance, closest first, returning at most
// limit entries. It is a diagnostic and never drives the match decision.
func Nearest(query domain.Embedding, candidates []Candidate, limit int) []domain.NearestMatch {
	out := make([]domain.NearestMatch, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			continue
		}
		out = append(out, domain.NearestMatch{
			IdentityID:  c.IdentityID,
			DisplayName: c.DisplayName,
			Distance:    Distance(query, c.Embedding),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
