package client

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/creancio/be-rc-validation/internal/faults"
)

// CasesClient resolves recovery cases on the legacy backend.
type CasesClient struct {
	http *httpx
}

// NewCasesClient creates a client against the facade base URL.
func NewCasesClient(baseURL string, timeout time.Duration, log zerolog.Logger) *CasesClient {
	return &CasesClient{http: newHTTPX(baseURL, timeout, log)}
}

// Exists reports whether the case is known to the backend. A not-found
// answer is a definite no, not an error.
func (c *CasesClient) Exists(ctx context.Context, caseID int64) (bool, error) {
	err := c.http.do(ctx, "GET", fmt.Sprintf("/cases/%d", caseID), nil, nil, nil)
	if err != nil {
		if faults.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
