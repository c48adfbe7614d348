// Package export projects candidate records and call outcomes into flat
// rows for CSV and JSON output. It is strictly read-only over the record
// store and the call ledger.
package export

import (
	"strconv"
	"time"

	"github.com/hirevox/hirevox/dial"
	"github.com/hirevox/hirevox/enrich"
	"github.com/hirevox/hirevox/roster"
)

// recordColumns is the base projection of a candidate record.
var recordColumns = []string{
	"name", "phone", "locality", "salary", "experience", "education",
}

// callColumns extends the projection when a batch is included.
var callColumns = []string{
	"call_state", "attempts", "last_error", "dialed_at",
}

// Options selects what goes into a snapshot.
type Options struct {
	SessionID string // restrict records to one ingestion session
	BatchID   string // join call outcomes from this batch
}

// Snapshot is a flat view: a header plus rows with identical column
// counts. Missing localities render as the unknown sentinel, every other
// missing cell as the empty string, never a shorter row.
type Snapshot struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Build assembles a snapshot from the record store and, when a batch is
// named, the call ledger. Records keep their first-seen order.
func Build(store *roster.Store, ledger *dial.Ledger, opts Options) (*Snapshot, error) {
	snap := &Snapshot{Columns: append([]string(nil), recordColumns...)}

	var batch *dial.Batch
	var jobsByPhone map[string]*dial.Job
	if opts.BatchID != "" {
		var err error
		batch, err = ledger.GetBatch(opts.BatchID)
		if err != nil {
			return nil, err
		}
		jobsByPhone = make(map[string]*dial.Job, len(batch.Jobs))
		for _, j := range batch.Jobs {
			jobsByPhone[j.Phone] = j
		}
		snap.Columns = append(snap.Columns, callColumns...)
	}

	matched := make(map[string]bool)
	for _, rec := range store.List(opts.SessionID) {
		row := recordRow(rec)
		if jobsByPhone != nil {
			row = append(row, callRow(jobsByPhone[rec.Normalized])...)
			matched[rec.Normalized] = true
		}
		snap.Rows = append(snap.Rows, row)
	}

	// Batch jobs without a matching record still get a row, so a batch
	// can be exported without the roster that produced it.
	if batch != nil {
		for _, j := range batch.Jobs {
			if matched[j.Phone] {
				continue
			}
			row := []string{"", j.Phone, enrich.UnknownLocality, "", "", ""}
			snap.Rows = append(snap.Rows, append(row, callRow(j)...))
		}
	}
	return snap, nil
}

func recordRow(rec roster.Record) []string {
	locality := rec.Locality
	if locality == "" {
		locality = enrich.UnknownLocality
	}
	return []string{
		rec.Name,
		rec.Normalized,
		locality,
		rec.Salary,
		rec.Experience,
		rec.Education,
	}
}

func callRow(job *dial.Job) []string {
	if job == nil {
		return []string{"", "", "", ""}
	}
	dialedAt := ""
	if job.DialStartedAt != nil {
		dialedAt = job.DialStartedAt.Format(time.RFC3339)
	}
	return []string{
		string(job.State),
		strconv.Itoa(job.Attempts),
		job.LastError,
		dialedAt,
	}
}
