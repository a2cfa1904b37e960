package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creancio/be-rc-validation/internal/faults"
	"github.com/creancio/be-rc-validation/internal/workflow"
)

func newInvestigationsClient(t *testing.T, h http.HandlerFunc) *InvestigationsClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewInvestigationsClient(srv.URL, 2*time.Second, zerolog.Nop())
}

func TestDeleteSentinelBodyIsSuccess(t *testing.T) {
	for _, body := range []string{"", "SUPPRESSION_OK", `"SUPPRESSION_OK"`} {
		c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/investigations/7", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(body))
		})

		assert.NoError(t, c.Delete(context.Background(), 7), "body %q", body)
	}
}

func TestDeleteInlineErrorInOKResponse(t *testing.T) {
	// The backend answers HTTP 200 even when the deletion failed; only the
	// body tells the truth.
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`"deletion blocked by dependent payments"`))
	})

	err := c.Delete(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, faults.ClassConflict, faults.ClassOf(err))
	assert.Equal(t, "deletion blocked by dependent payments", faults.MessageOf(err, ""))
}

func TestDeleteInlineMissingEntityInOKResponse(t *testing.T) {
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`"Enquete introuvable"`))
	})

	err := c.Delete(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, faults.IsNotFound(err))
}

func TestDelete404Classified(t *testing.T) {
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"investigation not found"}`, http.StatusNotFound)
	})

	err := c.Delete(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, faults.IsNotFound(err))
}

func TestGet500WithMissingEntityMessage(t *testing.T) {
	// The backend sometimes reports a missing entity as a 500.
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"l'enquete n'existe plus"}`, http.StatusInternalServerError)
	})

	_, err := c.Get(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, faults.IsNotFound(err))
}

func TestValidateSendsApproverAndComment(t *testing.T) {
	var gotQuery map[string][]string
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/investigations/7/validate", r.URL.Path)
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.Validate(context.Background(), 7, 9, "looks complete"))
	assert.Equal(t, []string{"9"}, gotQuery["approverId"])
	assert.Equal(t, []string{"looks complete"}, gotQuery["comment"])
}

func TestRejectSendsComment(t *testing.T) {
	var gotQuery map[string][]string
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/investigations/7/reject", r.URL.Path)
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.Reject(context.Background(), 7, "missing data"))
	assert.Equal(t, []string{"missing data"}, gotQuery["comment"])
}

func TestCreateSendsFlatPayload(t *testing.T) {
	var got map[string]any
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":42,"caseId":1,"functionalStatus":"PENDING_VALIDATION"}`))
	})

	creatorID := int64(3)
	inv, err := c.Create(context.Background(), &workflow.Investigation{
		CaseID:    1,
		CreatorID: &creatorID,
		Status:    workflow.StatusPendingValidation,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), inv.ID)
	assert.Equal(t, float64(1), got["caseId"])
	assert.Equal(t, float64(3), got["creatorId"])
	assert.Equal(t, "PENDING_VALIDATION", got["functionalStatus"])
}

func TestListPassesFilters(t *testing.T) {
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "PENDING_VALIDATION", q.Get("status"))
		assert.Equal(t, "3", q.Get("creatorId"))
		w.Write([]byte(`[]`))
	})

	invs, err := c.List(context.Background(), InvestigationFilters{
		Status:    "PENDING_VALIDATION",
		CreatorID: 3,
	})
	require.NoError(t, err)
	assert.Empty(t, invs)
}

func TestRequestCarriesRequestID(t *testing.T) {
	c := newInvestigationsClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`{"id":7}`))
	})

	_, err := c.Get(context.Background(), 7)
	require.NoError(t, err)
}
