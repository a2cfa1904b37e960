package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/creancio/be-rc-validation/internal/faults"
	"github.com/creancio/be-rc-validation/internal/workflow"
)

// deleteOKSentinel is the literal the backend puts in a 200 delete response
// when the deletion actually went through. Anything else in the body is an
// inline error message, HTTP status notwithstanding.
const deleteOKSentinel = "SUPPRESSION_OK"

// InvestigationsClient is the REST client for investigation resources on the
// legacy case-management backend.
type InvestigationsClient struct {
	http *httpx
}

// NewInvestigationsClient creates a client against the facade base URL.
func NewInvestigationsClient(baseURL string, timeout time.Duration, log zerolog.Logger) *InvestigationsClient {
	return &InvestigationsClient{http: newHTTPX(baseURL, timeout, log)}
}

// Create persists a new investigation.
func (c *InvestigationsClient) Create(ctx context.Context, inv *workflow.Investigation) (*workflow.Investigation, error) {
	payload := createInvestigationPayload{
		CaseID:            inv.CaseID,
		CreatorID:         inv.CreatorID,
		FunctionalStatus:  string(inv.Status),
		IsValidated:       inv.Validated,
		FinancialReport:   inv.FinancialReport,
		LegalReport:       inv.LegalReport,
		PatrimonialReport: inv.PatrimonialReport,
	}

	var created workflow.Investigation
	if err := c.http.do(ctx, "POST", "/investigations", nil, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update edits an investigation; only the fields present in the patch are sent.
func (c *InvestigationsClient) Update(ctx context.Context, id int64, patch *InvestigationPatch) (*workflow.Investigation, error) {
	var updated workflow.Investigation
	path := fmt.Sprintf("/investigations/%d", id)
	if err := c.http.do(ctx, "PUT", path, nil, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes an investigation. The backend may answer HTTP 200 with
// either the success sentinel or an inline error string in the body; only
// the sentinel means the deletion happened.
func (c *InvestigationsClient) Delete(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/investigations/%d", id)
	body, err := c.http.doRaw(ctx, "DELETE", path, nil, nil)
	if err != nil {
		return err
	}

	msg := extractMessage(body)
	if msg == "" || msg == deleteOKSentinel {
		return nil
	}
	if faults.LooksMissing(msg) {
		return faults.New(faults.ClassNotFound, msg)
	}
	return faults.Conflict(msg)
}

// Validate decides the investigation as approved, directly on the
// investigation resource.
func (c *InvestigationsClient) Validate(ctx context.Context, id, approverID int64, comment string) error {
	q := url.Values{}
	q.Set("approverId", strconv.FormatInt(approverID, 10))
	if comment != "" {
		q.Set("comment", comment)
	}
	return c.http.do(ctx, "PUT", fmt.Sprintf("/investigations/%d/validate", id), q, nil, nil)
}

// Reject decides the investigation as rejected, directly on the
// investigation resource.
func (c *InvestigationsClient) Reject(ctx context.Context, id int64, comment string) error {
	q := url.Values{}
	q.Set("comment", comment)
	return c.http.do(ctx, "PUT", fmt.Sprintf("/investigations/%d/reject", id), q, nil, nil)
}

// Get fetches one investigation.
func (c *InvestigationsClient) Get(ctx context.Context, id int64) (*workflow.Investigation, error) {
	var inv workflow.Investigation
	if err := c.http.do(ctx, "GET", fmt.Sprintf("/investigations/%d", id), nil, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// List fetches investigations matching the filters.
func (c *InvestigationsClient) List(ctx context.Context, filters InvestigationFilters) ([]workflow.Investigation, error) {
	q := url.Values{}
	if filters.Status != "" {
		q.Set("status", filters.Status)
	}
	if filters.CreatorID != 0 {
		q.Set("creatorId", strconv.FormatInt(filters.CreatorID, 10))
	}
	if filters.CaseID != 0 {
		q.Set("caseId", strconv.FormatInt(filters.CaseID, 10))
	}

	var invs []workflow.Investigation
	if err := c.http.do(ctx, "GET", "/investigations", q, nil, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// ListByCase fetches all investigations attached to one case.
func (c *InvestigationsClient) ListByCase(ctx context.Context, caseID int64) ([]workflow.Investigation, error) {
	var invs []workflow.Investigation
	path := fmt.Sprintf("/investigations/by-case/%d", caseID)
	if err := c.http.do(ctx, "GET", path, nil, nil, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}
