package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/creancio/be-rc-validation/internal/workflow"
)

// ValidationRecordsClient is the REST client for validation records on the
// legacy case-management backend.
type ValidationRecordsClient struct {
	http *httpx
}

// NewValidationRecordsClient creates a client against the facade base URL.
func NewValidationRecordsClient(baseURL string, timeout time.Duration, log zerolog.Logger) *ValidationRecordsClient {
	return &ValidationRecordsClient{http: newHTTPX(baseURL, timeout, log)}
}

// Create persists a new record referencing the investigation by id only.
func (c *ValidationRecordsClient) Create(ctx context.Context, investigationID int64, status workflow.ValidationStatus) (*workflow.ValidationRecord, error) {
	payload := createRecordPayload{
		Investigation: recordInvestigationRef{ID: investigationID},
		Status:        string(status),
	}

	var created workflow.ValidationRecord
	if err := c.http.do(ctx, "POST", "/validation-records", nil, payload, &created); err != nil {
		return nil, err
	}
	if created.InvestigationID == 0 {
		created.InvestigationID = investigationID
	}
	return &created, nil
}

// Validate decides the record as approved.
func (c *ValidationRecordsClient) Validate(ctx context.Context, id, approverID int64, comment string) error {
	return c.decide(ctx, id, "validate", approverID, comment)
}

// Reject decides the record as rejected.
func (c *ValidationRecordsClient) Reject(ctx context.Context, id, approverID int64, comment string) error {
	return c.decide(ctx, id, "reject", approverID, comment)
}

func (c *ValidationRecordsClient) decide(ctx context.Context, id int64, verb string, approverID int64, comment string) error {
	q := url.Values{}
	q.Set("approverId", strconv.FormatInt(approverID, 10))
	if comment != "" {
		q.Set("comment", comment)
	}
	path := fmt.Sprintf("/validation-records/%d/%s", id, verb)
	return c.http.do(ctx, "POST", path, q, nil, nil)
}

// ByInvestigation fetches all records referencing an investigation.
func (c *ValidationRecordsClient) ByInvestigation(ctx context.Context, investigationID int64) ([]workflow.ValidationRecord, error) {
	path := fmt.Sprintf("/validation-records/by-investigation/%d", investigationID)
	return c.list(ctx, path)
}

// ByCreator fetches all records created by a user.
func (c *ValidationRecordsClient) ByCreator(ctx context.Context, creatorID int64) ([]workflow.ValidationRecord, error) {
	path := fmt.Sprintf("/validation-records/by-creator/%d", creatorID)
	return c.list(ctx, path)
}

// ByApprover fetches all records decided by a user.
func (c *ValidationRecordsClient) ByApprover(ctx context.Context, approverID int64) ([]workflow.ValidationRecord, error) {
	path := fmt.Sprintf("/validation-records/by-approver/%d", approverID)
	return c.list(ctx, path)
}

// Pending fetches all records still awaiting a decision.
func (c *ValidationRecordsClient) Pending(ctx context.Context) ([]workflow.ValidationRecord, error) {
	return c.list(ctx, "/validation-records/pending")
}

func (c *ValidationRecordsClient) list(ctx context.Context, path string) ([]workflow.ValidationRecord, error) {
	var recs []workflow.ValidationRecord
	if err := c.http.do(ctx, "GET", path, nil, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
