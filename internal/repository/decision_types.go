package repository

import "time"

// DecisionEntry is one immutable record in the local validation decision log.
// The legacy backend keeps no decision history of its own, so this log is the
// only durable trace of who did what to an investigation and when.
type DecisionEntry struct {
	ID                 string
	InvestigationID    int64
	ValidationRecordID *int64
	CaseID             *int64
	Action             string // submitted | approved | rejected | deleted | resubmitted
	ActorID            int64
	ActorRole          string
	Comment            *string
	StatusBefore       *string
	StatusAfter        *string
	PerformedAt        time.Time
	Metadata           map[string]interface{} // arbitrary JSON context
}
