// Package handlers implements the ops HTTP API of the resolver: health
// checks, order and BOM lookups, and manual order re-announcement.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopfloor.io/mes/internal/api/middleware"
	"shopfloor.io/mes/internal/domain"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
)

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is the read and announce surface the handlers need.
type Store interface {
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	GetBOMEntry(ctx context.Context, id int64) (domain.BOMEntry, error)
	AnnounceOrders(ctx context.Context, orderIDs []int64) error
}

// Server implements all API handlers.
type Server struct {
	pool  Pinger
	store Store
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Pool  Pinger
	Store Store
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		pool:  deps.Pool,
		store: deps.Store,
	}
}

// Register mounts the handlers on r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/health/live", s.GetLiveness)
	r.GET("/health/ready", s.GetReadiness)

	v1 := r.Group("/api/v1")
	v1.GET("/orders/:id", s.GetOrder)
	v1.POST("/orders/:id/announce", s.AnnounceOrder)
	v1.GET("/bom-entries/:id", s.GetBOMEntry)
}

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetReadiness handles GET /health/ready.
func (s *Server) GetReadiness(c *gin.Context) {
	checks := make(map[string]string)
	allHealthy := true

	if err := s.pool.Ping(c.Request.Context()); err != nil {
		checks["database"] = "error"
		allHealthy = false
	} else {
		checks["database"] = "ok"
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": checks,
	})
}

// GetOrder handles GET /api/v1/orders/:id.
func (s *Server) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := s.store.GetOrder(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// AnnounceOrder handles POST /api/v1/orders/:id/announce. It publishes
// new_order again so the resolver writes a fresh batch for the order.
func (s *Server) AnnounceOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetOrder(ctx, id); err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.store.AnnounceOrders(ctx, []int64{id}); err != nil {
		_ = c.Error(err)
		return
	}
	middleware.RequestLogger(ctx).Info("Order re-announced", zap.Int64("order_id", id))
	c.JSON(http.StatusAccepted, gin.H{"order_id": id})
}

// GetBOMEntry handles GET /api/v1/bom-entries/:id.
func (s *Server) GetBOMEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := s.store.GetBOMEntry(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.Wrap(apperrors.ErrInvalidInput, apperrors.CodeInvalidPayload, "id must be a positive integer").
			WithParams(map[string]interface{}{"id": c.Param("id")}))
		return 0, false
	}
	return id, true
}
