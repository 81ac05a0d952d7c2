package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchResult is the decision for one detected region. IdentityID is uuid.Nil
// when no candidate was within tolerance.
type MatchResult struct {
	Region      FaceRegion `json:"region"`
	IdentityID  uuid.UUID  `json:"identity_id"`
	DisplayName string     `json:"display_name,omitempty"`
	Confidence  float64    `json:"confidence"`
	Distance    float64    `json:"distance"`
}

func (r MatchResult) Matched() bool {
	return r.IdentityID != uuid.Nil
}

// RecognitionEvent is the append-only record of a resolved match.
type RecognitionEvent struct {
	ID              uuid.UUID `json:"id"`
	IdentityID      uuid.UUID `json:"identity_id"`
	DisplayName     string    `json:"display_name,omitempty"`
	ConfidenceScore float64   `json:"confidence_score"`
	Timestamp       time.Time `json:"timestamp"`
	SessionID       uuid.UUID `json:"session_id,omitempty"`
}

// NearestMatch is a diagnostic ranking entry.
type NearestMatch struct {
	IdentityID  uuid.UUID `json:"identity_id"`
	DisplayName string    `json:"display_name"`
	Distance    float64   `json:"distance"`
}
