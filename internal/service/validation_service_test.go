package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creancio/be-rc-validation/internal/client"
	"github.com/creancio/be-rc-validation/internal/faults"
	"github.com/creancio/be-rc-validation/internal/repository"
	"github.com/creancio/be-rc-validation/internal/workflow"
)

func ptr(v int64) *int64 { return &v }

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeInvestigations struct {
	mu        sync.Mutex
	byID      map[int64]workflow.Investigation
	listErr   error
	deleteErr error
	rejectErr error
	calls     []string
	rejected  map[int64]string
	deleted   []int64
	nextID    int64
}

func newFakeInvestigations(invs ...workflow.Investigation) *fakeInvestigations {
	f := &fakeInvestigations{
		byID:     make(map[int64]workflow.Investigation),
		rejected: make(map[int64]string),
		nextID:   1000,
	}
	for _, inv := range invs {
		f.byID[inv.ID] = inv
	}
	return f
}

func (f *fakeInvestigations) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeInvestigations) Create(ctx context.Context, inv *workflow.Investigation) (*workflow.Investigation, error) {
	f.record("create")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	created := *inv
	created.ID = f.nextID
	f.byID[created.ID] = created
	return &created, nil
}

func (f *fakeInvestigations) Update(ctx context.Context, id int64, patch *client.InvestigationPatch) (*workflow.Investigation, error) {
	f.record("update")
	inv, ok := f.byID[id]
	if !ok {
		return nil, faults.NotFound("investigation", id)
	}
	if patch.FinancialReport != nil {
		inv.FinancialReport = patch.FinancialReport
	}
	f.byID[id] = inv
	return &inv, nil
}

func (f *fakeInvestigations) Delete(ctx context.Context, id int64) error {
	f.record("delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return faults.NotFound("investigation", id)
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeInvestigations) Validate(ctx context.Context, id, approverID int64, comment string) error {
	f.record("validate")
	return nil
}

func (f *fakeInvestigations) Reject(ctx context.Context, id int64, comment string) error {
	f.record("reject")
	if f.rejectErr != nil {
		return f.rejectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[id] = comment
	if inv, ok := f.byID[id]; ok {
		inv.Status = workflow.StatusRejected
		f.byID[id] = inv
	}
	return nil
}

func (f *fakeInvestigations) Get(ctx context.Context, id int64) (*workflow.Investigation, error) {
	f.record("get")
	inv, ok := f.byID[id]
	if !ok {
		return nil, faults.NotFound("investigation", id)
	}
	return &inv, nil
}

func (f *fakeInvestigations) List(ctx context.Context, filters client.InvestigationFilters) ([]workflow.Investigation, error) {
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	var invs []workflow.Investigation
	for _, inv := range f.byID {
		invs = append(invs, inv)
	}
	return invs, nil
}

func (f *fakeInvestigations) ListByCase(ctx context.Context, caseID int64) ([]workflow.Investigation, error) {
	f.record("list_by_case")
	var invs []workflow.Investigation
	for _, inv := range f.byID {
		if inv.CaseID == caseID {
			invs = append(invs, inv)
		}
	}
	return invs, nil
}

type fakeRecords struct {
	mu        sync.Mutex
	byInv     map[int64][]workflow.ValidationRecord
	lookupErr map[int64]error
	createErr error
	nextID    int64
	calls     []string
	validated []int64
	approvers []int64
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		byInv:     make(map[int64][]workflow.ValidationRecord),
		lookupErr: make(map[int64]error),
		nextID:    54,
	}
}

func (f *fakeRecords) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRecords) Create(ctx context.Context, investigationID int64, status workflow.ValidationStatus) (*workflow.ValidationRecord, error) {
	f.record("create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec := workflow.ValidationRecord{
		ID:              f.nextID,
		InvestigationID: investigationID,
		Status:          status,
	}
	f.byInv[investigationID] = append(f.byInv[investigationID], rec)
	return &rec, nil
}

func (f *fakeRecords) Validate(ctx context.Context, id, approverID int64, comment string) error {
	f.record("validate")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, id)
	f.approvers = append(f.approvers, approverID)
	return nil
}

func (f *fakeRecords) Reject(ctx context.Context, id, approverID int64, comment string) error {
	f.record("reject")
	return nil
}

func (f *fakeRecords) ByInvestigation(ctx context.Context, investigationID int64) ([]workflow.ValidationRecord, error) {
	f.record("by_investigation")
	if err, ok := f.lookupErr[investigationID]; ok {
		return nil, err
	}
	return f.byInv[investigationID], nil
}

func (f *fakeRecords) ByCreator(ctx context.Context, creatorID int64) ([]workflow.ValidationRecord, error) {
	return nil, nil
}

func (f *fakeRecords) ByApprover(ctx context.Context, approverID int64) ([]workflow.ValidationRecord, error) {
	return nil, nil
}

func (f *fakeRecords) Pending(ctx context.Context) ([]workflow.ValidationRecord, error) {
	return nil, nil
}

type fakeCases struct {
	known map[int64]bool
}

func (f *fakeCases) Exists(ctx context.Context, caseID int64) (bool, error) {
	return f.known[caseID], nil
}

type fakeDecisionLog struct {
	mu      sync.Mutex
	entries []*repository.DecisionEntry
}

func (f *fakeDecisionLog) Append(ctx context.Context, entry *repository.DecisionEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeDecisionLog) ListByInvestigation(ctx context.Context, investigationID int64) ([]*repository.DecisionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.DecisionEntry
	for _, e := range f.entries {
		if e.InvestigationID == investigationID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) PublishDecision(eventType string, investigationID, caseID int64, actor workflow.Actor, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

// ── fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	svc       *ValidationService
	invs      *fakeInvestigations
	recs      *fakeRecords
	cases     *fakeCases
	decisions *fakeDecisionLog
	notifier  *fakeNotifier
}

func newFixture(invs ...workflow.Investigation) *fixture {
	log := zerolog.Nop()
	f := &fixture{
		invs:      newFakeInvestigations(invs...),
		recs:      newFakeRecords(),
		cases:     &fakeCases{known: map[int64]bool{1: true}},
		decisions: &fakeDecisionLog{},
		notifier:  &fakeNotifier{},
	}
	f.svc = NewValidationService(f.invs, f.recs, f.cases, f.decisions, f.notifier, &log)
	return f
}

var (
	agent3 = workflow.Actor{ID: 3, Role: workflow.RoleAgent}
	chef9  = workflow.Actor{ID: 9, Role: workflow.RoleChef}
)

func pendingInvestigation(id, creatorID int64) workflow.Investigation {
	return workflow.Investigation{
		ID:        id,
		CaseID:    1,
		CreatorID: &creatorID,
		Status:    workflow.StatusPendingValidation,
	}
}

// ── approve ───────────────────────────────────────────────────────────────────

func TestApproveVirtualCreatesRecordThenDecides(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))

	err := f.svc.Approve(context.Background(), chef9, 7, "looks complete")
	require.NoError(t, err)

	// Create must come before validate, and validate must target the minted id.
	require.Equal(t, []string{"by_investigation", "create", "validate"}, f.recs.calls)
	require.Len(t, f.recs.validated, 1)
	assert.Equal(t, int64(55), f.recs.validated[0])
	assert.Equal(t, int64(9), f.recs.approvers[0])
}

func TestApproveCreateFailureAbortsDecide(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))
	f.recs.createErr = faults.New(faults.ClassTransient, "backend is unreachable")

	err := f.svc.Approve(context.Background(), chef9, 7, "")
	require.Error(t, err)
	assert.Empty(t, f.recs.validated, "no decide call after a failed create")
	assert.Empty(t, f.decisions.entries)
}

func TestApproveExistingRecordSkipsCreate(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))
	f.recs.byInv[7] = []workflow.ValidationRecord{
		{ID: 200, InvestigationID: 7, Status: workflow.ValidationPending, CreatorID: ptr(3)},
	}

	err := f.svc.Approve(context.Background(), chef9, 7, "")
	require.NoError(t, err)

	assert.NotContains(t, f.recs.calls, "create")
	require.Len(t, f.recs.validated, 1)
	assert.Equal(t, int64(200), f.recs.validated[0])
}

func TestApproveAlreadyDecidedFailsLocally(t *testing.T) {
	inv := pendingInvestigation(7, 3)
	inv.Status = workflow.StatusValidated
	inv.Validated = true
	f := newFixture(inv)

	err := f.svc.Approve(context.Background(), chef9, 7, "")
	require.Error(t, err)
	assert.Equal(t, faults.ClassInvalid, faults.ClassOf(err))
	assert.NotContains(t, f.recs.calls, "validate")
}

func TestApproveOwnSubmissionForbidden(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 9))

	err := f.svc.Approve(context.Background(), chef9, 7, "")
	require.Error(t, err)
	assert.Equal(t, faults.ClassUnauthorized, faults.ClassOf(err))
	assert.NotContains(t, f.recs.calls, "validate")
}

func TestApproveByAgentForbidden(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 5))

	err := f.svc.Approve(context.Background(), agent3, 7, "")
	require.Error(t, err)
	assert.Equal(t, faults.ClassUnauthorized, faults.ClassOf(err))
}

// ── reject ────────────────────────────────────────────────────────────────────

func TestRejectWithoutCommentFailsBeforeAnyNetworkCall(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))

	for _, comment := range []string{"", "   ", "ab"} {
		err := f.svc.Reject(context.Background(), chef9, 7, comment)
		require.Error(t, err)
		assert.Equal(t, faults.ClassInvalid, faults.ClassOf(err))
	}
	assert.Empty(t, f.invs.calls, "no facade call for a locally rejected operation")
	assert.Empty(t, f.recs.calls)
}

func TestRejectUsesInvestigationPath(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))

	err := f.svc.Reject(context.Background(), chef9, 7, "missing patrimonial data")
	require.NoError(t, err)

	assert.Equal(t, "missing patrimonial data", f.invs.rejected[7])
	assert.NotContains(t, f.recs.calls, "reject", "reject never goes through the validation record")
}

func TestRejectAlreadyDecidedFailsLocally(t *testing.T) {
	inv := pendingInvestigation(7, 3)
	inv.Status = workflow.StatusRejected
	f := newFixture(inv)

	err := f.svc.Reject(context.Background(), chef9, 7, "again")
	require.Error(t, err)
	assert.Equal(t, faults.ClassInvalid, faults.ClassOf(err))
	assert.Empty(t, f.invs.rejected)
}

// ── delete ────────────────────────────────────────────────────────────────────

func TestDeleteByCreator(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))

	err := f.svc.Delete(context.Background(), agent3, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, f.invs.deleted)
}

func TestDeleteAlreadyGoneIsSuccess(t *testing.T) {
	f := newFixture()

	err := f.svc.Delete(context.Background(), chef9, 7)
	require.NoError(t, err, "absence of the target is success-equivalent")
}

func TestDeleteNotFoundMidOperationIsSuccess(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))
	f.invs.deleteErr = faults.NotFound("investigation", 7)

	err := f.svc.Delete(context.Background(), chef9, 7)
	require.NoError(t, err)
}

func TestDeleteConflictSurfaced(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))
	f.invs.deleteErr = faults.Conflict("deletion blocked by dependent data")

	err := f.svc.Delete(context.Background(), chef9, 7)
	require.Error(t, err)
	assert.Equal(t, faults.ClassConflict, faults.ClassOf(err))
}

func TestDeleteByOtherAgentForbidden(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 5))

	err := f.svc.Delete(context.Background(), agent3, 7)
	require.Error(t, err)
	assert.Equal(t, faults.ClassUnauthorized, faults.ClassOf(err))
	assert.Empty(t, f.invs.deleted)
}

func TestDeleteDecidedItemAllowed(t *testing.T) {
	inv := pendingInvestigation(7, 3)
	inv.Status = workflow.StatusValidated
	inv.Validated = true
	f := newFixture(inv)

	err := f.svc.Delete(context.Background(), agent3, 7)
	require.NoError(t, err, "status never gates deletion")
}

// ── loads ─────────────────────────────────────────────────────────────────────

func TestLoadWorkflowItemsDegradesFailedLookups(t *testing.T) {
	f := newFixture(
		pendingInvestigation(1, 3),
		pendingInvestigation(2, 3),
	)
	f.recs.byInv[1] = []workflow.ValidationRecord{
		{ID: 100, InvestigationID: 1, Status: workflow.ValidationPending, CreatorID: ptr(3)},
	}
	f.recs.lookupErr[2] = faults.New(faults.ClassTransient, "timeout")

	items, report, err := f.svc.LoadWorkflowItems(context.Background())
	require.NoError(t, err, "one failed lookup never fails the whole load")
	require.Len(t, items, 2)

	byID := make(map[int64]workflow.WorkflowItem)
	for _, it := range items {
		byID[it.Investigation.ID] = it
	}
	assert.False(t, byID[1].Virtual())
	assert.True(t, byID[2].Virtual(), "failed lookup degrades to no record")
	assert.Contains(t, report.LookupFailures, int64(2))
}

// ── resubmission ──────────────────────────────────────────────────────────────

func TestRequestNewValidationMintsFreshRecord(t *testing.T) {
	inv := pendingInvestigation(7, 3)
	inv.Status = workflow.StatusRejected
	f := newFixture(inv)
	f.recs.byInv[7] = []workflow.ValidationRecord{
		{ID: 100, InvestigationID: 7, Status: workflow.ValidationRejected, CreatorID: ptr(3)},
	}

	rec, err := f.svc.RequestNewValidation(context.Background(), agent3, 7)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.NotEqual(t, int64(100), rec.ID, "the decided record is never reopened")
	assert.Equal(t, workflow.ValidationPending, rec.Status)
}

func TestRequestNewValidationBlockedWhilePending(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))

	_, err := f.svc.RequestNewValidation(context.Background(), agent3, 7)
	require.Error(t, err)
	assert.Equal(t, faults.ClassConflict, faults.ClassOf(err))
}

// ── authoring ─────────────────────────────────────────────────────────────────

func TestCreateInvestigationByAgentStartsPending(t *testing.T) {
	f := newFixture()

	inv, err := f.svc.CreateInvestigation(context.Background(), agent3, &CreateInvestigationRequest{CaseID: 1})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingValidation, inv.Status)
	assert.False(t, inv.Validated)

	recs := f.recs.byInv[inv.ID]
	require.Len(t, recs, 1)
	assert.Equal(t, workflow.ValidationPending, recs[0].Status)
}

func TestCreateInvestigationByChefAutoApproved(t *testing.T) {
	f := newFixture()

	inv, err := f.svc.CreateInvestigation(context.Background(), chef9, &CreateInvestigationRequest{CaseID: 1})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusValidated, inv.Status)
	assert.True(t, inv.Validated)

	recs := f.recs.byInv[inv.ID]
	require.Len(t, recs, 1)
	assert.Equal(t, workflow.ValidationValidated, recs[0].Status)
}

func TestCreateInvestigationUnknownCase(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateInvestigation(context.Background(), agent3, &CreateInvestigationRequest{CaseID: 404})
	require.Error(t, err)
	assert.Equal(t, faults.ClassNotFound, faults.ClassOf(err))
}

func TestCreateInvestigationSurvivesRecordFailure(t *testing.T) {
	f := newFixture()
	f.recs.createErr = faults.New(faults.ClassTransient, "backend is unreachable")

	inv, err := f.svc.CreateInvestigation(context.Background(), agent3, &CreateInvestigationRequest{CaseID: 1})
	require.NoError(t, err, "the record gap is reconciliation's problem, not creation's")
	assert.NotZero(t, inv.ID)
}

// ── end to end ────────────────────────────────────────────────────────────────

func TestEndToEndVirtualApproveScenario(t *testing.T) {
	f := newFixture(pendingInvestigation(7, 3))

	items, report, err := f.svc.LoadWorkflowItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, int64(7), item.Investigation.ID)
	assert.True(t, item.Virtual())
	assert.Equal(t, workflow.ValidationPending, item.Status())
	require.NotNil(t, item.CreatorID())
	assert.Equal(t, int64(3), *item.CreatorID())
	assert.Equal(t, []int64{7}, report.Synthesized)

	err = f.svc.Approve(context.Background(), chef9, 7, "complete")
	require.NoError(t, err)

	require.Equal(t, []int64{55}, f.recs.validated)
	require.Equal(t, []int64{9}, f.recs.approvers)

	// Decision trail and notification both observed the approval.
	require.Len(t, f.decisions.entries, 1)
	assert.Equal(t, "approved", f.decisions.entries[0].Action)
	assert.Equal(t, []string{"investigation_approved"}, f.notifier.events)
}
