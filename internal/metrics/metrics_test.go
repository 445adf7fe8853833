package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	e := echo.New()
	e.Use(Middleware)
	e.GET("/v1/things/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	before := testutil.ToFloat64(HttpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/things/:id", "200"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/things/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	after := testutil.ToFloat64(HttpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/things/:id", "200"))
	assert.Equal(t, before+1, after)
}

func TestRecordGuardDecision(t *testing.T) {
	c := GuardDecisionsCounter.WithLabelValues("redirect", "unauthenticated")
	before := testutil.ToFloat64(c)
	RecordGuardDecision("redirect", "unauthenticated")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
