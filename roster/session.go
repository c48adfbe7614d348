package roster

import (
	"time"

	"github.com/google/uuid"
)

// Session groups the records captured during one scraping run. At most one
// session is active at a time; events arriving outside a session are still
// accepted but carry no session id.
type Session struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
	Records   int       `json:"records"` // events merged while active
}

func newSession(label string, now time.Time) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Label:     label,
		StartedAt: now,
	}
}

func (s *Session) active() bool {
	return s != nil && s.EndedAt.IsZero()
}
