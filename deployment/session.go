package deployment

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies a single deployment run. Addresses recorded within one session accumulate into an address
// history, while the first address recorded for a contract in a new session replaces the history of earlier runs.
type Session struct {
	// ID uniquely identifies the session.
	ID uuid.UUID

	// Started is when the session began.
	Started time.Time
}

// NewSession starts a new session.
func NewSession() *Session {
	return &Session{
		ID:      uuid.New(),
		Started: time.Now(),
	}
}

// String returns the session identifier.
func (s *Session) String() string {
	return s.ID.String()
}
