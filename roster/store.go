package roster

import (
	"sync"
	"time"

	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/logger"
)

// Change is one append-only log entry describing an upsert.
type Change struct {
	Phone    string    `json:"phone"` // normalized
	Fields   []string  `json:"fields"`
	Created  bool      `json:"created"`
	Revision int       `json:"revision"`
	At       time.Time `json:"at"`
}

// UpsertResult reports what an event did to the store.
type UpsertResult struct {
	Record  Record
	Created bool
}

// Store holds candidate records keyed by normalized phone. All methods are
// safe for concurrent use; the HTTP endpoint and the dial scheduler share
// one instance.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string // normalized phones in first-seen order
	changes []Change
	session *Session

	now func() time.Time // injectable for tests
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Upsert merges a validated event into the store. Events must come from
// ValidateEvent; an event without a normalized phone is rejected.
func (s *Store) Upsert(e CandidateEvent) (UpsertResult, error) {
	if e.normalized == "" {
		return UpsertResult{}, errors.NewValidationError("event was not validated")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[e.normalized]
	if !ok {
		rec = &Record{
			Normalized: e.normalized,
			IngestedAt: now,
		}
		s.records[e.normalized] = rec
		s.order = append(s.order, e.normalized)
	}

	fields := rec.merge(e)
	rec.Revision++
	if s.session.active() {
		rec.SessionID = s.session.ID
		// Records counts distinct candidates, re-scraping the same
		// profile does not inflate it.
		if !ok {
			s.session.Records++
		}
	}

	s.changes = append(s.changes, Change{
		Phone:    e.normalized,
		Fields:   fields,
		Created:  !ok,
		Revision: rec.Revision,
		At:       now,
	})

	logger.Debugw("record upserted",
		"phone", e.normalized, "created", !ok, "revision", rec.Revision, "fields", fields)

	return UpsertResult{Record: *rec, Created: !ok}, nil
}

// Get returns the record for a normalized phone.
func (s *Store) Get(normalized string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[normalized]
	if !ok {
		return Record{}, errors.Wrapf(errors.ErrNotFound, "no record for %s", normalized)
	}
	return *rec, nil
}

// List returns records in first-seen order. A non-empty sessionID limits
// the result to records last touched in that session.
func (s *Store) List(sessionID string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.order))
	for _, key := range s.order {
		rec := s.records[key]
		if sessionID != "" && rec.SessionID != sessionID {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// SetLocality records the enrichment result for a phone. The enrichment
// pipeline is the only writer of this field.
func (s *Store) SetLocality(normalized, locality string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[normalized]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "no record for %s", normalized)
	}
	if rec.Locality == locality {
		return nil
	}
	rec.Locality = locality
	rec.Revision++
	s.changes = append(s.changes, Change{
		Phone:    normalized,
		Fields:   []string{"locality"},
		Revision: rec.Revision,
		At:       s.now(),
	})
	return nil
}

// Changes returns a copy of the append-only change log.
func (s *Store) Changes() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Change, len(s.changes))
	copy(out, s.changes)
	return out
}

// Reset drops all records, changes, and any active session.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
	s.order = nil
	s.changes = nil
	s.session = nil
	logger.Infow("record store reset")
}

// StartSession begins a new scraping session. Starting while another
// session is active is a conflict; the caller must end the current one
// first.
func (s *Store) StartSession(label string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.active() {
		return Session{}, errors.Wrapf(errors.ErrConflict,
			"session %s is still active", s.session.ID)
	}
	s.session = newSession(label, s.now())
	logger.Infow("session started", "session", s.session.ID, "label", label)
	return *s.session, nil
}

// EndSession closes the active session and returns it with its final
// record count.
func (s *Store) EndSession() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.session.active() {
		return Session{}, errors.Wrap(errors.ErrNotFound, "no active session")
	}
	s.session.EndedAt = s.now()
	logger.Infow("session ended",
		"session", s.session.ID, "records", s.session.Records)
	return *s.session, nil
}

// ActiveSession returns the current session, if one is running.
func (s *Store) ActiveSession() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.session.active() {
		return Session{}, false
	}
	return *s.session, true
}
