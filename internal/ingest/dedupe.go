package ingest

// Classification is the dedup verdict for one normalized row.
type Classification int

const (
	ClassNew Classification = iota
	ClassDuplicateExisting
	ClassDuplicateInBatch
)

func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassDuplicateExisting:
		return "duplicate_existing"
	case ClassDuplicateInBatch:
		return "duplicate_in_batch"
	default:
		return "unknown"
	}
}

// Classify places a normalized ISBN against the library snapshot and the
// rows already seen in this batch. In-batch duplicates win over existing
// ones: the first occurrence in row order claims the key and later rows are
// reported against it, which keeps intra-batch collisions deterministic.
// The existing index is an immutable snapshot taken at run start; books
// written during the run are folded into batchSeen only.
func Classify(isbn string, existing map[string]struct{}, batchSeen map[string]struct{}) Classification {
	if _, ok := batchSeen[isbn]; ok {
		return ClassDuplicateInBatch
	}
	if _, ok := existing[isbn]; ok {
		// Claim the key so a later row with the same ISBN reports as an
		// in-batch duplicate, not a second existing-duplicate.
		batchSeen[isbn] = struct{}{}
		return ClassDuplicateExisting
	}
	batchSeen[isbn] = struct{}{}
	return ClassNew
}
