package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor.io/mes/internal/api/handlers"
	"shopfloor.io/mes/internal/domain"
	"shopfloor.io/mes/internal/metrics"
	"shopfloor.io/mes/internal/pkg/logger"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type emptyStore struct{}

func (emptyStore) GetOrder(context.Context, int64) (domain.Order, error) {
	return domain.Order{ID: 1}, nil
}

func (emptyStore) GetBOMEntry(context.Context, int64) (domain.BOMEntry, error) {
	return domain.BOMEntry{ID: 1}, nil
}

func (emptyStore) AnnounceOrders(context.Context, []int64) error { return nil }

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := metrics.NewRegistry()
	m.OrdersResolved.Inc()
	server := handlers.NewServer(handlers.ServerDeps{Pool: okPinger{}, Store: emptyStore{}})
	return buildRouter(server, m.Handler())
}

func TestRouter_Metrics(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mes_resolver_orders_resolved_total 1")
}

func TestRouter_LogLevel(t *testing.T) {
	r := testRouter()
	defer func() { _ = logger.SetLevel("error") }()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/log/level", strings.NewReader(`{"level":"debug"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "debug", logger.GetLevel().String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/log/level", nil))
	assert.Contains(t, w.Body.String(), "debug")
}

func TestRouter_Health(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
