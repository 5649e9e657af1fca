package ledger

import (
	"github.com/roach88/flagsearch/internal/ir"
)

// Ledger is the ordered list of run records of one search.
//
// Thread-safety: Ledger is NOT safe for concurrent use. All writes come
// from the engine's control goroutine.
type Ledger struct {
	records []ir.RunRecord
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// FromRecords rebuilds a ledger from previously stored records.
// The slice is copied.
func FromRecords(records []ir.RunRecord) *Ledger {
	l := &Ledger{records: make([]ir.RunRecord, len(records))}
	copy(l.records, records)
	return l
}

// Record appends rec.
func (l *Ledger) Record(rec ir.RunRecord) {
	l.records = append(l.records, rec)
}

// Records returns a copy of all records in append order.
func (l *Ledger) Records() []ir.RunRecord {
	out := make([]ir.RunRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// first returns the first successful record of kind.
func (l *Ledger) first(kind ir.RunKind) (ir.RunRecord, bool) {
	for _, r := range l.records {
		if r.Kind == kind && !r.Failed() {
			return r, true
		}
	}
	return ir.RunRecord{}, false
}
