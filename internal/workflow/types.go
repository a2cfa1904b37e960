package workflow

import "time"

// FunctionalStatus is the lifecycle status carried by an Investigation on the
// legacy backend.
type FunctionalStatus string

const (
	StatusPendingValidation FunctionalStatus = "PENDING_VALIDATION"
	StatusValidated         FunctionalStatus = "VALIDATED"
	StatusRejected          FunctionalStatus = "REJECTED"
	StatusInProgress        FunctionalStatus = "IN_PROGRESS"
	StatusClosed            FunctionalStatus = "CLOSED"
)

// ValidationStatus is the decision state of a validation record.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "PENDING"
	ValidationValidated ValidationStatus = "VALIDATED"
	ValidationRejected  ValidationStatus = "REJECTED"
)

// Role is the closed set of actor roles the workflow distinguishes.
// Agents author investigations; chefs approve or reject them.
type Role string

const (
	RoleAgent Role = "AGENT"
	RoleChef  Role = "CHEF"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleChef:
		return true
	}
	return false
}

// Actor is the explicit acting-user context passed into every permission
// check and state transition. There is no ambient "current user".
type Actor struct {
	ID   int64
	Role Role
}

// ActorRef is a denormalized snapshot of the user who authored an
// investigation. The backend may null it out after validation, so it is
// never used as proof of ownership on its own.
type ActorRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Investigation is a report authored by an agent about a debtor, attached to
// exactly one case. The report fields themselves are opaque to the workflow.
type Investigation struct {
	ID        int64             `json:"id,omitempty"`
	CaseID    int64             `json:"caseId"`
	CreatorID *int64            `json:"creatorId,omitempty"`
	Creator   *ActorRef         `json:"creator,omitempty"`
	Status    FunctionalStatus  `json:"functionalStatus"`
	Validated bool              `json:"isValidated"`

	FinancialReport   *string `json:"financialReport,omitempty"`
	LegalReport       *string `json:"legalReport,omitempty"`
	PatrimonialReport *string `json:"patrimonialReport,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// ValidationRecord is the audit/approval object for one investigation.
// ID == 0 means the record only exists in memory (virtual, not persisted).
type ValidationRecord struct {
	ID              int64            `json:"id,omitempty"`
	InvestigationID int64            `json:"investigationId"`
	CreatorID       *int64           `json:"creatorId,omitempty"`
	ApproverID      *int64           `json:"approverId,omitempty"`
	Status          ValidationStatus `json:"status"`
	Comment         *string          `json:"comment,omitempty"`
	DecidedAt       *time.Time       `json:"decidedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt,omitempty"`
}

// Virtual reports whether the record has not been persisted yet.
func (r ValidationRecord) Virtual() bool { return r.ID == 0 }

// WorkflowItem pairs an investigation with its real or synthesized validation
// record. It is recomputed on every reconciliation pass and never persisted.
type WorkflowItem struct {
	Investigation Investigation
	Record        ValidationRecord
}

// Virtual reports whether the item's validation record is synthesized.
func (it WorkflowItem) Virtual() bool { return it.Record.Virtual() }

// Status is the decision state the item is in.
func (it WorkflowItem) Status() ValidationStatus { return it.Record.Status }

// CreatorID is the effective creator of the investigation, after the
// reconciliation back-fill. Nil when no source still knows the creator.
func (it WorkflowItem) CreatorID() *int64 { return it.Investigation.CreatorID }

// CreatedBy reports whether the investigation was created by the given actor.
// A lost creator id never matches anyone.
func (it WorkflowItem) CreatedBy(actorID int64) bool {
	return it.Investigation.CreatorID != nil && *it.Investigation.CreatorID == actorID
}
