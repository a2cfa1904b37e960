package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/creancio/be-rc-validation/internal/client"
	"github.com/creancio/be-rc-validation/internal/faults"
	"github.com/creancio/be-rc-validation/internal/repository"
	"github.com/creancio/be-rc-validation/internal/workflow"
)

// minRejectionCommentLen is the shortest rejection reason accepted, in runes,
// after trimming. Rejection without a usable reason never reaches the network.
const minRejectionCommentLen = 3

// recordLookupConcurrency bounds the fan-out of per-investigation validation
// record lookups during a reconciliation load.
const recordLookupConcurrency = 8

// DecisionLog is the local decision audit trail.
type DecisionLog interface {
	Append(ctx context.Context, entry *repository.DecisionEntry) error
	ListByInvestigation(ctx context.Context, investigationID int64) ([]*repository.DecisionEntry, error)
}

// DecisionNotifier publishes workflow events for the notifications service.
type DecisionNotifier interface {
	PublishDecision(eventType string, investigationID, caseID int64, actor workflow.Actor, payload map[string]any)
}

// ValidationService implements the investigation validation workflow: the
// reconciliation loads, the approve/reject/delete transitions and their
// preconditions. The backend has no workflow engine of its own; everything
// here is the compensating logic that keeps the two entities coherent.
type ValidationService struct {
	investigations client.InvestigationsAPI
	records        client.ValidationRecordsAPI
	cases          client.CasesAPI
	decisions      DecisionLog
	notifier       DecisionNotifier
	log            *zerolog.Logger
}

// NewValidationService creates a new validation service. decisions and
// notifier may be nil; both are best-effort side channels.
func NewValidationService(
	investigations client.InvestigationsAPI,
	records client.ValidationRecordsAPI,
	cases client.CasesAPI,
	decisions DecisionLog,
	notifier DecisionNotifier,
	log *zerolog.Logger,
) *ValidationService {
	return &ValidationService{
		investigations: investigations,
		records:        records,
		cases:          cases,
		decisions:      decisions,
		notifier:       notifier,
		log:            log,
	}
}

// ── Reconciliation loads ──────────────────────────────────────────────────────

// LoadWorkflowItems loads every investigation and its validation records and
// merges them into workflow items. Record lookups fan out with bounded
// concurrency; a failed lookup degrades that investigation to "no record
// found" instead of failing the whole load.
func (s *ValidationService) LoadWorkflowItems(ctx context.Context) ([]workflow.WorkflowItem, workflow.Report, error) {
	invs, err := s.investigations.List(ctx, client.InvestigationFilters{})
	if err != nil {
		return nil, workflow.Report{}, err
	}

	perInv := make([][]workflow.ValidationRecord, len(invs))
	failed := make([]bool, len(invs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recordLookupConcurrency)
	for i, inv := range invs {
		i, inv := i, inv
		g.Go(func() error {
			recs, err := s.records.ByInvestigation(gctx, inv.ID)
			if err != nil {
				s.log.Warn().Err(err).
					Int64("investigation_id", inv.ID).
					Msg("validation record lookup failed; treating as no record")
				failed[i] = true
				return nil
			}
			perInv[i] = recs
			return nil
		})
	}
	// Goroutines never return errors; Wait only observes context cancellation.
	if err := g.Wait(); err != nil {
		return nil, workflow.Report{}, faults.Wrap(err, faults.ClassTransient, "workflow load cancelled")
	}

	var all []workflow.ValidationRecord
	for _, recs := range perInv {
		all = append(all, recs...)
	}

	items, report := workflow.Reconcile(invs, all)
	for i, inv := range invs {
		if failed[i] {
			report.LookupFailures = append(report.LookupFailures, inv.ID)
		}
	}
	s.logReport(report)

	return items, report, nil
}

// LoadItem re-derives a single workflow item from the backend. Mutating
// operations never trust an in-memory item: concurrent approvers may already
// have acted, so truth is reloaded before every transition.
func (s *ValidationService) LoadItem(ctx context.Context, investigationID int64) (workflow.WorkflowItem, error) {
	inv, err := s.investigations.Get(ctx, investigationID)
	if err != nil {
		return workflow.WorkflowItem{}, err
	}

	recs, err := s.records.ByInvestigation(ctx, investigationID)
	if err != nil {
		s.log.Warn().Err(err).
			Int64("investigation_id", investigationID).
			Msg("validation record lookup failed; treating as no record")
		recs = nil
	}

	items, report := workflow.Reconcile([]workflow.Investigation{*inv}, recs)
	s.logReport(report)
	return items[0], nil
}

// ── Transitions ───────────────────────────────────────────────────────────────

// Approve validates a pending investigation on behalf of the actor. When the
// item's record is virtual it is persisted first; a creation failure aborts
// the whole operation before any decide call is issued. The decision itself
// goes through the validation record.
func (s *ValidationService) Approve(ctx context.Context, actor workflow.Actor, investigationID int64, comment string) error {
	item, err := s.LoadItem(ctx, investigationID)
	if err != nil {
		return err
	}

	if item.Status() != workflow.ValidationPending {
		return faults.Newf(faults.ClassInvalid,
			"investigation %d has already been decided (%s)", investigationID, item.Status())
	}
	if !workflow.CanApproveOrReject(actor, item) {
		return faults.Unauthorized("you may not approve this investigation")
	}

	record := item.Record
	if record.Virtual() {
		created, err := s.records.Create(ctx, investigationID, workflow.ValidationPending)
		if err != nil {
			return faults.Wrap(err, faults.ClassOf(err), "could not create the missing validation record")
		}
		record = *created
	}

	if err := s.records.Validate(ctx, record.ID, actor.ID, comment); err != nil {
		return err
	}

	s.log.Info().
		Int64("investigation_id", investigationID).
		Int64("validation_record_id", record.ID).
		Int64("approver_id", actor.ID).
		Msg("Investigation approved")

	s.recordDecision(ctx, actor, &item, "approved", &record.ID, optional(comment),
		string(workflow.StatusPendingValidation), string(workflow.StatusValidated))
	s.notify("investigation_approved", item, actor, map[string]any{"comment": comment})
	return nil
}

// Reject rejects a pending investigation with a mandatory reason. The
// decision is applied directly to the investigation, not through the
// validation record: the record path proved unreliable for virtual records,
// and the asymmetry with Approve is kept as a backend compatibility contract.
func (s *ValidationService) Reject(ctx context.Context, actor workflow.Actor, investigationID int64, comment string) error {
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) < minRejectionCommentLen {
		return faults.Invalid("comment", "a rejection reason is required")
	}

	item, err := s.LoadItem(ctx, investigationID)
	if err != nil {
		return err
	}

	if item.Status() != workflow.ValidationPending {
		return faults.Newf(faults.ClassInvalid,
			"investigation %d has already been decided (%s)", investigationID, item.Status())
	}
	if !workflow.CanApproveOrReject(actor, item) {
		return faults.Unauthorized("you may not reject this investigation")
	}

	if err := s.investigations.Reject(ctx, investigationID, comment); err != nil {
		return err
	}

	s.log.Info().
		Int64("investigation_id", investigationID).
		Int64("approver_id", actor.ID).
		Msg("Investigation rejected")

	var recordID *int64
	if !item.Virtual() {
		recordID = &item.Record.ID
	}
	s.recordDecision(ctx, actor, &item, "rejected", recordID, &comment,
		string(workflow.StatusPendingValidation), string(workflow.StatusRejected))
	s.notify("investigation_rejected", item, actor, map[string]any{"comment": comment})
	return nil
}

// Delete removes an investigation on behalf of its creator or a chef. A
// not-found answer means a concurrent actor got there first; that counts as
// success, not as an error to display.
func (s *ValidationService) Delete(ctx context.Context, actor workflow.Actor, investigationID int64) error {
	item, err := s.LoadItem(ctx, investigationID)
	if err != nil {
		if faults.IsNotFound(err) {
			s.log.Info().
				Int64("investigation_id", investigationID).
				Msg("Investigation already gone before delete")
			return nil
		}
		return err
	}

	if !workflow.CanDelete(actor, item) {
		return faults.Unauthorized("you may not delete this investigation")
	}

	if err := s.investigations.Delete(ctx, investigationID); err != nil {
		if faults.IsNotFound(err) {
			s.log.Info().
				Int64("investigation_id", investigationID).
				Msg("Investigation already gone; treating delete as success")
		} else {
			return err
		}
	}

	s.log.Info().
		Int64("investigation_id", investigationID).
		Int64("actor_id", actor.ID).
		Msg("Investigation deleted")

	statusBefore := string(item.Investigation.Status)
	s.recordDecision(ctx, actor, &item, "deleted", nil, nil, statusBefore, "")
	s.notify("investigation_deleted", item, actor, nil)
	return nil
}

// RequestNewValidation opens a fresh validation round for a decided
// investigation. The old record stays decided; resubmission always mints a
// new PENDING record.
func (s *ValidationService) RequestNewValidation(ctx context.Context, actor workflow.Actor, investigationID int64) (*workflow.ValidationRecord, error) {
	item, err := s.LoadItem(ctx, investigationID)
	if err != nil {
		return nil, err
	}

	if !workflow.CanRequestNewValidation(actor, item) {
		return nil, faults.Conflict("a validation is already pending for this investigation")
	}

	created, err := s.records.Create(ctx, investigationID, workflow.ValidationPending)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("investigation_id", investigationID).
		Int64("validation_record_id", created.ID).
		Int64("actor_id", actor.ID).
		Msg("New validation requested")

	statusBefore := string(item.Investigation.Status)
	s.recordDecision(ctx, actor, &item, "resubmitted", &created.ID, nil,
		statusBefore, string(workflow.StatusPendingValidation))
	s.notify("investigation_submitted", item, actor, nil)
	return created, nil
}

// ── Authoring ─────────────────────────────────────────────────────────────────

// CreateInvestigationRequest carries the authoring inputs.
type CreateInvestigationRequest struct {
	CaseID            int64
	FinancialReport   *string
	LegalReport       *string
	PatrimonialReport *string
}

// CreateInvestigation authors a new investigation for a case. An agent's
// investigation starts pending with a submission record; a chef acting as
// creator gets it auto-approved. Failing to create the submission record is
// tolerated: the next reconciliation pass synthesizes it.
func (s *ValidationService) CreateInvestigation(ctx context.Context, actor workflow.Actor, req *CreateInvestigationRequest) (*workflow.Investigation, error) {
	if !workflow.CanCreate(actor) {
		return nil, faults.Unauthorized("you may not create investigations")
	}
	if req.CaseID == 0 {
		return nil, faults.Invalid("caseId", "a case reference is required")
	}

	exists, err := s.cases.Exists(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, faults.NotFound("case", req.CaseID)
	}

	creatorID := actor.ID
	inv := &workflow.Investigation{
		CaseID:            req.CaseID,
		CreatorID:         &creatorID,
		Status:            workflow.StatusPendingValidation,
		FinancialReport:   req.FinancialReport,
		LegalReport:       req.LegalReport,
		PatrimonialReport: req.PatrimonialReport,
	}

	recordStatus := workflow.ValidationPending
	if actor.Role == workflow.RoleChef {
		// A chef authoring an investigation approves it in the same stroke.
		inv.Status = workflow.StatusValidated
		inv.Validated = true
		recordStatus = workflow.ValidationValidated
	}

	created, err := s.investigations.Create(ctx, inv)
	if err != nil {
		return nil, err
	}

	rec, err := s.records.Create(ctx, created.ID, recordStatus)
	if err != nil {
		// The two entities are not created transactionally. Reconciliation
		// exists exactly for this gap, so the investigation survives.
		s.log.Warn().Err(err).
			Int64("investigation_id", created.ID).
			Msg("submission record creation failed; reconciliation will synthesize it")
	}

	s.log.Info().
		Int64("investigation_id", created.ID).
		Int64("case_id", created.CaseID).
		Int64("creator_id", actor.ID).
		Str("status", string(created.Status)).
		Msg("Investigation created")

	item := workflow.WorkflowItem{Investigation: *created}
	var recordID *int64
	if rec != nil {
		recordID = &rec.ID
	}
	s.recordDecision(ctx, actor, &item, "submitted", recordID, nil, "", string(created.Status))
	s.notify("investigation_submitted", item, actor, nil)
	return created, nil
}

// UpdateInvestigation edits the report fields of an investigation.
func (s *ValidationService) UpdateInvestigation(ctx context.Context, actor workflow.Actor, investigationID int64, patch *client.InvestigationPatch) (*workflow.Investigation, error) {
	item, err := s.LoadItem(ctx, investigationID)
	if err != nil {
		return nil, err
	}

	if !workflow.CanEdit(actor, item) {
		return nil, faults.Unauthorized("you may not edit this investigation")
	}

	updated, err := s.investigations.Update(ctx, investigationID, patch)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("investigation_id", investigationID).
		Int64("actor_id", actor.ID).
		Msg("Investigation updated")
	return updated, nil
}

// ── History ───────────────────────────────────────────────────────────────────

// DecisionHistory returns the local decision trail for an investigation.
func (s *ValidationService) DecisionHistory(ctx context.Context, investigationID int64) ([]*repository.DecisionEntry, error) {
	if s.decisions == nil {
		return nil, faults.New(faults.ClassUnknown, "decision history is not available")
	}
	return s.decisions.ListByInvestigation(ctx, investigationID)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// recordDecision appends to the audit trail and logs a warning on failure
// (never fails the operation).
func (s *ValidationService) recordDecision(ctx context.Context, actor workflow.Actor, item *workflow.WorkflowItem, action string, recordID *int64, comment *string, statusBefore, statusAfter string) {
	if s.decisions == nil {
		return
	}

	entry := &repository.DecisionEntry{
		InvestigationID:    item.Investigation.ID,
		ValidationRecordID: recordID,
		Action:             action,
		ActorID:            actor.ID,
		ActorRole:          string(actor.Role),
		Comment:            comment,
	}
	if item.Investigation.CaseID != 0 {
		caseID := item.Investigation.CaseID
		entry.CaseID = &caseID
	}
	if statusBefore != "" {
		entry.StatusBefore = &statusBefore
	}
	if statusAfter != "" {
		entry.StatusAfter = &statusAfter
	}

	if err := s.decisions.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Int64("investigation_id", item.Investigation.ID).
			Str("action", action).
			Msg("Failed to write decision log entry")
	}
}

func (s *ValidationService) notify(eventType string, item workflow.WorkflowItem, actor workflow.Actor, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishDecision(eventType, item.Investigation.ID, item.Investigation.CaseID, actor, payload)
}

func (s *ValidationService) logReport(report workflow.Report) {
	if report.Clean() {
		return
	}
	s.log.Warn().
		Ints64("dangling_dropped", report.DanglingDropped).
		Ints64("duplicates_ignored", report.DuplicatesIgnored).
		Ints64("synthesized", report.Synthesized).
		Ints64("back_filled", report.BackFilled).
		Ints64("lookup_failures", report.LookupFailures).
		Msg("Reconciliation found inconsistencies")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
