package domain

import "context"

// Participant is the profile the auth service vouches for. The core reads it
// for eligibility (category) and notification (name, email) only.
type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Category string `json:"category"`
}

// ParticipantRepository reads participant profiles owned by the auth service.
type ParticipantRepository interface {
	GetByID(ctx context.Context, id string) (*Participant, error)
}

// TokenVerifier verifies a bearer token and returns the authenticated
// participant ID. Token issuance belongs to the auth service; the core only
// verifies.
type TokenVerifier interface {
	Verify(token string) (participantID string, err error)
}
