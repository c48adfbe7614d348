// Package roster is the in-memory candidate record store.
//
// Records are keyed by normalized phone number (the durable dedup key;
// extension-assigned source ids can be reassigned across scraping
// sessions). Updates merge rather than replace: a field once populated is
// never cleared by a later event lacking it.
package roster

import (
	"time"
)

// Record is the merged profile of one candidate.
type Record struct {
	SourceID   string `json:"source_id,omitempty"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`      // latest raw form as scraped
	Normalized string `json:"normalized"` // immutable once set, store key
	Salary     string `json:"salary,omitempty"`
	Experience string `json:"experience,omitempty"`
	Education  string `json:"education,omitempty"`
	Locality   string `json:"locality,omitempty"` // empty until enriched
	SessionID  string `json:"session_id,omitempty"`

	IngestedAt time.Time `json:"ingested_at"` // first-seen time
	Revision   int       `json:"revision"`
}

// merge applies an event to the record in place. Fields present in the
// event overwrite only unset record fields, except name and phone which
// always refresh to the latest non-empty value (the extension corrects
// typos on re-scrape). Returns the field names that changed.
func (r *Record) merge(e CandidateEvent) []string {
	var changed []string

	if e.Name != "" && e.Name != r.Name {
		r.Name = e.Name
		changed = append(changed, "name")
	}
	if e.Phone != "" && e.Phone != r.Phone {
		r.Phone = e.Phone
		changed = append(changed, "phone")
	}
	if r.SourceID == "" && e.SourceID != "" {
		r.SourceID = e.SourceID
		changed = append(changed, "source_id")
	}
	if r.Salary == "" && e.Salary != "" {
		r.Salary = e.Salary
		changed = append(changed, "salary")
	}
	if r.Experience == "" && e.Experience != "" {
		r.Experience = e.Experience
		changed = append(changed, "experience")
	}
	if r.Education == "" && e.Education != "" {
		r.Education = e.Education
		changed = append(changed, "education")
	}

	return changed
}
