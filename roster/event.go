package roster

import (
	"github.com/hirevox/hirevox/errors"
)

// maxFieldLen bounds individual payload fields. Scraped values longer than
// this are junk (or abuse) rather than candidate data.
const maxFieldLen = 512

// CandidateEvent is one validated candidate payload pushed by the browser
// extension. Optional fields are empty strings when absent; the merge rule
// in Record.merge treats empty as "not provided".
type CandidateEvent struct {
	SourceID   string `json:"source_id,omitempty"` // extension-assigned, may be reassigned across sessions
	Name       string `json:"name"`
	Phone      string `json:"phone"` // raw, as scraped
	Salary     string `json:"salary,omitempty"`
	Experience string `json:"experience,omitempty"`
	Education  string `json:"education,omitempty"`

	// normalized is filled by ValidateEvent; events constructed by hand
	// must go through ValidateEvent before Upsert.
	normalized string
}

// NormalizedPhone returns the dedup key computed during validation.
func (e *CandidateEvent) NormalizedPhone() string { return e.normalized }

// ValidateEvent checks an inbound payload and returns a well-formed event
// or a validation error. It is a pure function: no store access, no I/O.
func ValidateEvent(e CandidateEvent) (CandidateEvent, error) {
	normalized, err := NormalizePhone(e.Phone)
	if err != nil {
		return CandidateEvent{}, err
	}

	for _, f := range []struct {
		name, value string
	}{
		{"source_id", e.SourceID},
		{"name", e.Name},
		{"salary", e.Salary},
		{"experience", e.Experience},
		{"education", e.Education},
	} {
		if len(f.value) > maxFieldLen {
			return CandidateEvent{}, errors.NewValidationError(
				"field %s exceeds %d bytes", f.name, maxFieldLen)
		}
	}

	e.normalized = normalized
	return e, nil
}
