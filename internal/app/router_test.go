package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/linen-ledger/internal/access"
	"github.com/odyssey-erp/linen-ledger/internal/ledger"
	"github.com/odyssey-erp/linen-ledger/internal/observability"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
	_ "github.com/odyssey-erp/linen-ledger/testing"
)

type stubFinder struct{}

func (stubFinder) FindActor(context.Context, uuid.UUID) (access.Actor, error) {
	return access.Actor{}, shared.ErrNotFound
}

func newTestRouter() http.Handler {
	svc := ledger.NewService(ledger.ServiceParams{})
	return NewRouter(RouterParams{
		Config:        &Config{RateLimitPerMin: 1000},
		Access:        access.Middleware{Finder: stubFinder{}},
		LedgerHandler: ledger.NewHandler(nil, svc),
		Metrics:       observability.NewMetrics(),
	})
}

func TestRouterHealthz(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterRequiresKnownUser(t *testing.T) {
	router := newTestRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ledger/balances", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/ledger/balances", nil)
	req.Header.Set(access.UserHeader, uuid.NewString())
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouterExposesMetrics(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "linen_masters_locations_created_total 0")
}
