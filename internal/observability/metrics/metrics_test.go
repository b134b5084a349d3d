package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpErrors.WithLabelValues("test_handler", http.MethodPost))
	ObserveHTTPRequest("test_handler", http.MethodPost, http.StatusInternalServerError, 20*time.Millisecond)
	ObserveHTTPRequest("test_handler", http.MethodPost, http.StatusOK, 10*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(httpErrors.WithLabelValues("test_handler", http.MethodPost)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequests.WithLabelValues("test_handler", http.MethodPost, "200")), 1.0)
}

func TestObserveActionAndModel(t *testing.T) {
	ObserveAction("TEST_ACTION", OutcomeFailed)
	assert.GreaterOrEqual(t, testutil.ToFloat64(actionOutcomes.WithLabelValues("TEST_ACTION", OutcomeFailed)), 1.0)

	ObserveModelRequest("small", errors.New("boom"), time.Millisecond)
	ObserveInbox("ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "merem_action_outcomes_total")
	assert.Contains(t, body, `merem_model_request_duration_seconds_count{model_class="small",status="error"}`)
	assert.Contains(t, body, "merem_inbox_messages_total")
}
