package domain

import "time"

// OutcomeKind is the tag of a per-row import result.
type OutcomeKind string

const (
	OutcomeImported     OutcomeKind = "imported"
	OutcomeSkipped      OutcomeKind = "skipped"
	OutcomeFailed       OutcomeKind = "failed"
	OutcomeNotProcessed OutcomeKind = "not_processed" // run cancelled before the row was reached
)

// SkipReason explains a Skipped outcome.
type SkipReason string

const (
	SkipDuplicateExisting SkipReason = "duplicate_existing"
	SkipDuplicateInBatch  SkipReason = "duplicate_in_batch"
	SkipUserDeclined      SkipReason = "user_declined"
)

// RowOutcome is the per-row audit record of an import run. Produced once per
// input row and never mutated afterwards.
type RowOutcome struct {
	RowNumber  int               `json:"row_number"`
	Kind       OutcomeKind       `json:"kind"`
	Book       *Book             `json:"book,omitempty"`        // set for imported rows
	SkipReason SkipReason        `json:"skip_reason,omitempty"` // set for skipped rows
	FailCode   string            `json:"fail_code,omitempty"`   // error code, set for failed rows
	FailDetail string            `json:"fail_detail,omitempty"` // human-readable reason
	Raw        map[string]string `json:"raw,omitempty"`         // original values, set for failed rows
}

// ManualMatchEntry is a failed-but-plausible row promoted to the manual match
// queue. It carries everything needed to resolve the row without re-reading
// the source file.
type ManualMatchEntry struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	RowNumber  int       `json:"row_number"`
	Raw        map[string]string `json:"raw"`
	FailCode   string    `json:"fail_code"`
	FailDetail string    `json:"fail_detail"`
	// Draft is the row normalized with a relaxed ISBN requirement. Importing
	// it as new is only permitted through an explicit user decision.
	Draft      *Book      `json:"draft"`
	Candidates []*Book    `json:"candidates"` // same-title/same-author matches from the library
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// IsResolved reports whether a decision has been applied to this entry.
func (e *ManualMatchEntry) IsResolved() bool {
	return e.ResolvedAt != nil
}

// MatchAction is a user decision on a ManualMatchEntry.
type MatchAction string

const (
	MatchImportAsNew       MatchAction = "import_as_new"
	MatchSkip              MatchAction = "skip"
	MatchMergeIntoExisting MatchAction = "merge_into_existing"
)

// MatchDecision pairs an entry id with the action to apply.
type MatchDecision struct {
	EntryID string      `json:"entry_id"`
	Action  MatchAction `json:"action"`
	// MergeISBN selects the candidate for MatchMergeIntoExisting.
	MergeISBN string `json:"merge_isbn,omitempty"`
}

// Phase is the lifecycle state of an import run.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseDecoding      Phase = "decoding"
	PhaseMapping       Phase = "mapping"
	PhaseNormalizing   Phase = "normalizing"
	PhaseDeduplicating Phase = "deduplicating"
	PhaseCommitting    Phase = "committing"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
)

// ImportBatchReport aggregates a full commit run. Finalized once all rows are
// processed and immutable thereafter.
type ImportBatchReport struct {
	BatchID      string       `json:"batch_id"`
	Filename     string       `json:"filename,omitempty"`
	Format       string       `json:"format"`
	Phase        Phase        `json:"phase"`
	TotalRows    int          `json:"total_rows"`
	Imported     int          `json:"imported"`
	Skipped      int          `json:"skipped"`
	Failed       int          `json:"failed"`
	NotProcessed int          `json:"not_processed"`
	Queued       int          `json:"queued"` // rows surfaced to the manual match queue
	Cancelled    bool         `json:"cancelled"`
	StartedAt    time.Time    `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Outcomes     []RowOutcome `json:"outcomes"`
}

// Tally recounts the outcome counters from the outcome list.
func (r *ImportBatchReport) Tally() {
	r.Imported, r.Skipped, r.Failed, r.NotProcessed = 0, 0, 0, 0
	for i := range r.Outcomes {
		switch r.Outcomes[i].Kind {
		case OutcomeImported:
			r.Imported++
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeFailed:
			r.Failed++
		case OutcomeNotProcessed:
			r.NotProcessed++
		}
	}
}
