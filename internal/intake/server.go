package intake

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"

	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/metrics"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
	"shopfloor.io/mes/internal/pkg/logger"
	"shopfloor.io/mes/internal/pkg/worker"
	"shopfloor.io/mes/internal/repository"
)

// OrderPlacer persists and announces one order.
type OrderPlacer interface {
	PlaceClientOrder(ctx context.Context, p repository.PlaceOrderParams) (int64, error)
}

// Server reads order documents from a UDP socket and hands each datagram to
// the worker pool.
type Server struct {
	addr       string
	bufferSize int
	placer     OrderPlacer
	pool       *worker.Pool
	validator  *Validator
	metrics    *metrics.Registry
	log        *zap.Logger
}

// NewServer creates an intake server.
func NewServer(cfg config.IntakeConfig, placer OrderPlacer, pool *worker.Pool, m *metrics.Registry) *Server {
	return &Server{
		addr:       cfg.Addr,
		bufferSize: cfg.BufferSize,
		placer:     placer,
		pool:       pool,
		validator:  NewValidator(),
		metrics:    m,
		log:        logger.Named("intake"),
	}
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	return s.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx is done, then closes conn and
// returns nil. Any other read error is returned.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	s.log.Info("Intake listening", zap.String("addr", conn.LocalAddr().String()))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	buf := make([]byte, s.bufferSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read datagram: %w", err)
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.log.Info("Received order document", zap.Int("bytes", n), zap.Stringer("from", from))

		// Detached: a document already received is placed even after ctx ends,
		// as long as the pool was built on a context that outlives ctx.
		if err := s.pool.SubmitDetached(func(ctx context.Context) {
			s.HandleDocument(ctx, data)
		}); err != nil {
			s.log.Error("Dropping order document", zap.Error(err))
		}
	}
}

// HandleDocument places every valid order of one document and returns the
// ids placed. Bad orders are logged and skipped; a document that does not
// decode is dropped whole.
func (s *Server) HandleDocument(ctx context.Context, data []byte) []int64 {
	doc, err := ParseDocument(data)
	if err != nil {
		s.metrics.DocumentsRejected.Inc()
		s.log.Error("Error parsing order document", zap.Error(err))
		return nil
	}
	s.log.Info("Parsed order document", zap.Int("orders", len(doc.ClientOrders)))

	var placed []int64
	for _, co := range doc.ClientOrders {
		id, err := s.place(ctx, co)
		if err != nil {
			s.metrics.OrderPlaceFailures.WithLabelValues(apperrors.Code(err)).Inc()
			s.log.Error("Error placing order",
				zap.String("client", co.Client.NameID),
				zap.Int32("number", co.Order.Number),
				zap.String("code", apperrors.Code(err)),
				zap.Error(err),
			)
			continue
		}
		s.metrics.OrdersPlaced.Inc()
		s.log.Info("Order placed",
			zap.Int64("order_id", id),
			zap.String("client", co.Client.NameID),
			zap.String("work_piece", co.Order.WorkPiece),
			zap.Int32("quantity", co.Order.Quantity),
		)
		placed = append(placed, id)
	}
	return placed
}

func (s *Server) place(ctx context.Context, co ClientOrder) (int64, error) {
	if err := s.validator.Validate(co); err != nil {
		return 0, err
	}
	params, err := PlaceParams(co)
	if err != nil {
		return 0, err
	}
	return s.placer.PlaceClientOrder(ctx, params)
}
