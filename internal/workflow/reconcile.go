package workflow

// Report describes the inconsistencies a reconciliation pass encountered.
// Callers decide whether to log or surface them; the pass itself never fails.
type Report struct {
	// DanglingDropped holds ids of validation records whose investigation no
	// longer exists. They contribute nothing to the result.
	DanglingDropped []int64
	// DuplicatesIgnored holds ids of validation records that lost the
	// per-investigation tie-break.
	DuplicatesIgnored []int64
	// Synthesized holds investigation ids for which a virtual record was
	// created because no live record was found.
	Synthesized []int64
	// BackFilled holds investigation ids whose creator was recovered from the
	// validation record after the backend dropped it.
	BackFilled []int64
	// LookupFailures holds investigation ids whose record lookup failed and
	// were therefore treated as having no record. Filled by the loader, not
	// by Reconcile.
	LookupFailures []int64
}

// Clean reports whether the pass saw no inconsistencies at all.
func (r Report) Clean() bool {
	return len(r.DanglingDropped) == 0 &&
		len(r.DuplicatesIgnored) == 0 &&
		len(r.Synthesized) == 0 &&
		len(r.BackFilled) == 0 &&
		len(r.LookupFailures) == 0
}

// Reconcile merges the two independently-loaded collections into one workflow
// item per investigation. The two entities are logically 1:1 but are not
// created transactionally, so the merge must tolerate records pointing at
// deleted investigations and investigations with no record at all.
//
// The inputs are never mutated; the result is fully recomputed on every call.
func Reconcile(investigations []Investigation, records []ValidationRecord) ([]WorkflowItem, Report) {
	var report Report

	known := make(map[int64]int, len(investigations))
	for i, inv := range investigations {
		known[inv.ID] = i
	}

	// Index live records by investigation id. At most one PENDING record per
	// investigation should exist, but the backend does not guarantee it:
	// keep the first encountered, preferring PENDING over a decided one.
	live := make(map[int64]ValidationRecord, len(records))
	for _, rec := range records {
		if _, ok := known[rec.InvestigationID]; !ok {
			report.DanglingDropped = append(report.DanglingDropped, rec.ID)
			continue
		}
		prev, exists := live[rec.InvestigationID]
		if !exists {
			live[rec.InvestigationID] = rec
			continue
		}
		if prev.Status != ValidationPending && rec.Status == ValidationPending {
			report.DuplicatesIgnored = append(report.DuplicatesIgnored, prev.ID)
			live[rec.InvestigationID] = rec
		} else {
			report.DuplicatesIgnored = append(report.DuplicatesIgnored, rec.ID)
		}
	}

	items := make([]WorkflowItem, 0, len(investigations))
	for _, inv := range investigations {
		rec, ok := live[inv.ID]
		if !ok {
			rec = synthesizeRecord(inv)
			report.Synthesized = append(report.Synthesized, inv.ID)
		}

		// The backend can lose Investigation.creatorId after validation; the
		// record is then the only remaining source of truth for authorship.
		if inv.CreatorID == nil && rec.CreatorID != nil {
			id := *rec.CreatorID
			inv.CreatorID = &id
			report.BackFilled = append(report.BackFilled, inv.ID)
		}

		items = append(items, WorkflowItem{Investigation: inv, Record: rec})
	}

	return items, report
}

// synthesizeRecord builds an in-memory validation record for an investigation
// that has none, mapping the investigation's functional status onto a
// decision state. The record stays virtual (id unset) until a transition
// needs it persisted.
func synthesizeRecord(inv Investigation) ValidationRecord {
	status := ValidationPending
	switch inv.Status {
	case StatusValidated:
		status = ValidationValidated
	case StatusRejected:
		status = ValidationRejected
	}

	rec := ValidationRecord{
		InvestigationID: inv.ID,
		Status:          status,
		CreatedAt:       inv.CreatedAt,
	}
	if inv.CreatorID != nil {
		id := *inv.CreatorID
		rec.CreatorID = &id
	}
	return rec
}
