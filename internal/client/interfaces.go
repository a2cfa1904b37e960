package client

import (
	"context"

	"github.com/creancio/be-rc-validation/internal/workflow"
)

// InvestigationsAPI is the facade surface for investigation resources.
// The workflow core only ever talks to the backend through this interface.
type InvestigationsAPI interface {
	Create(ctx context.Context, inv *workflow.Investigation) (*workflow.Investigation, error)
	Update(ctx context.Context, id int64, patch *InvestigationPatch) (*workflow.Investigation, error)
	// Delete removes the investigation and, server-side, cascades deletion of
	// its validation records. A missing target is reported as a not-found
	// class error; interpreting that as success is the caller's policy.
	Delete(ctx context.Context, id int64) error
	// Validate decides the investigation directly (Investigation path).
	Validate(ctx context.Context, id, approverID int64, comment string) error
	// Reject decides the investigation directly (Investigation path).
	Reject(ctx context.Context, id int64, comment string) error
	Get(ctx context.Context, id int64) (*workflow.Investigation, error)
	List(ctx context.Context, filters InvestigationFilters) ([]workflow.Investigation, error)
	ListByCase(ctx context.Context, caseID int64) ([]workflow.Investigation, error)
}

// ValidationRecordsAPI is the facade surface for validation records.
type ValidationRecordsAPI interface {
	// Create persists a new record for an investigation. The backend derives
	// the creator from the investigation; a creator id in the body is not
	// accepted.
	Create(ctx context.Context, investigationID int64, status workflow.ValidationStatus) (*workflow.ValidationRecord, error)
	Validate(ctx context.Context, id, approverID int64, comment string) error
	Reject(ctx context.Context, id, approverID int64, comment string) error
	ByInvestigation(ctx context.Context, investigationID int64) ([]workflow.ValidationRecord, error)
	ByCreator(ctx context.Context, creatorID int64) ([]workflow.ValidationRecord, error)
	ByApprover(ctx context.Context, approverID int64) ([]workflow.ValidationRecord, error)
	Pending(ctx context.Context) ([]workflow.ValidationRecord, error)
}

// CasesAPI resolves recovery cases (dossiers). Investigations always attach
// to exactly one case, so creation verifies the case exists first.
type CasesAPI interface {
	Exists(ctx context.Context, caseID int64) (bool, error)
}
