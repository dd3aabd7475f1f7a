package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor.io/mes/internal/api/middleware"
	"shopfloor.io/mes/internal/domain"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
	"shopfloor.io/mes/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeStore struct {
	orders    map[int64]domain.Order
	entries   map[int64]domain.BOMEntry
	announced []int64
}

func (f *fakeStore) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, apperrors.ErrOrderNotFound(id, nil)
	}
	return o, nil
}

func (f *fakeStore) GetBOMEntry(_ context.Context, id int64) (domain.BOMEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return domain.BOMEntry{}, apperrors.ErrBOMEntryNotFound(id, nil)
	}
	return e, nil
}

func (f *fakeStore) AnnounceOrders(_ context.Context, ids []int64) error {
	f.announced = append(f.announced, ids...)
	return nil
}

func newTestRouter(p Pinger, store Store) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler())
	NewServer(ServerDeps{Pool: p, Store: store}).Register(r)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	w := do(newTestRouter(fakePinger{}, &fakeStore{}), http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(newTestRouter(fakePinger{err: errors.New("down")}, &fakeStore{}), http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"error"`)
}

func TestGetOrder(t *testing.T) {
	store := &fakeStore{orders: map[int64]domain.Order{5: {ID: 5, PieceID: 9, Quantity: 3}}}
	r := newTestRouter(fakePinger{}, store)

	w := do(r, http.MethodGet, "/api/v1/orders/5")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int32(3), got.Quantity)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/orders/6").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/orders/abc").Code)
}

func TestAnnounceOrder(t *testing.T) {
	store := &fakeStore{orders: map[int64]domain.Order{5: {ID: 5}}}
	r := newTestRouter(fakePinger{}, store)

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/v1/orders/5/announce").Code)
	assert.Equal(t, []int64{5}, store.announced)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/orders/9/announce").Code)
	assert.Equal(t, []int64{5}, store.announced)
}

func TestGetBOMEntry(t *testing.T) {
	store := &fakeStore{entries: map[int64]domain.BOMEntry{7: {ID: 7, OrderID: 5, StepNumber: 2, StepsTotal: 3}}}
	r := newTestRouter(fakePinger{}, store)

	w := do(r, http.MethodGet, "/api/v1/bom-entries/7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"step_number":2`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/bom-entries/8").Code)
}
