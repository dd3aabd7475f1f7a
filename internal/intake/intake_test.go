package intake

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/domain"
	"shopfloor.io/mes/internal/metrics"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
	"shopfloor.io/mes/internal/pkg/logger"
	"shopfloor.io/mes/internal/pkg/worker"
	"shopfloor.io/mes/internal/repository"
)

func init() {
	_ = logger.Init("error", "json")
}

const twoOrders = `<?xml version="1.0"?>
<Orders>
  <ClientOrder>
    <Client NameId="Client AA"/>
    <Order Number="18" WorkPiece="P5" Quantity="8" DueDate="7" LatePen="$10.00" EarlyPen="5.50€"/>
  </ClientOrder>
  <ClientOrder>
    <Client NameId="Client BB"/>
    <Order Number="2" WorkPiece="P9" Quantity="1" DueDate="0" LatePen="$1" EarlyPen="$2"/>
  </ClientOrder>
</Orders>`

type recordingPlacer struct {
	mu     sync.Mutex
	placed []repository.PlaceOrderParams
	err    error
	calls  chan struct{}
}

func newRecordingPlacer() *recordingPlacer {
	return &recordingPlacer{calls: make(chan struct{}, 16)}
}

func (p *recordingPlacer) PlaceClientOrder(_ context.Context, params repository.PlaceOrderParams) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.calls <- struct{}{} }()
	if p.err != nil {
		return 0, p.err
	}
	p.placed = append(p.placed, params)
	return int64(len(p.placed)), nil
}

func newTestServer(t *testing.T, placer OrderPlacer) (*Server, *metrics.Registry) {
	t.Helper()
	pool, err := worker.NewPool(context.Background(), worker.Config{Name: "intake-test", Size: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)

	m := metrics.NewRegistry()
	return NewServer(config.IntakeConfig{Addr: "127.0.0.1:0", BufferSize: 10024}, placer, pool, m), m
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(twoOrders))
	require.NoError(t, err)
	require.Len(t, doc.ClientOrders, 2)

	first := doc.ClientOrders[0]
	assert.Equal(t, "Client AA", first.Client.NameID)
	assert.Equal(t, int32(18), first.Order.Number)
	assert.Equal(t, "P5", first.Order.WorkPiece)
	assert.Equal(t, int32(8), first.Order.Quantity)
	assert.Equal(t, int32(7), first.Order.DueDate)
	assert.Equal(t, "$10.00", first.Order.LatePen)
}

func TestParseDocument_Malformed(t *testing.T) {
	_, err := ParseDocument([]byte("<Orders><ClientOrder>"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidOrderDocument, apperrors.Code(err))

	_, err = ParseDocument([]byte(`<Orders><ClientOrder><Order Quantity="many"/></ClientOrder></Orders>`))
	assert.Error(t, err)
}

func TestValidator(t *testing.T) {
	valid := ClientOrder{
		Client: Client{NameID: "Client AA"},
		Order:  Order{Number: 1, WorkPiece: "P6", Quantity: 1, DueDate: 0, LatePen: "$1", EarlyPen: "$1"},
	}
	v := NewValidator()
	require.NoError(t, v.Validate(valid))
	for _, w := range domain.OrderableWorkPieces {
		co := valid
		co.Order.WorkPiece = string(w)
		require.NoError(t, v.Validate(co), w)
	}

	tests := []struct {
		name   string
		mutate func(*ClientOrder)
	}{
		{"unknown work piece", func(co *ClientOrder) { co.Order.WorkPiece = "P1" }},
		{"missing work piece", func(co *ClientOrder) { co.Order.WorkPiece = "" }},
		{"zero quantity", func(co *ClientOrder) { co.Order.Quantity = 0 }},
		{"negative due date", func(co *ClientOrder) { co.Order.DueDate = -1 }},
		{"missing client", func(co *ClientOrder) { co.Client.NameID = "" }},
		{"missing penalty", func(co *ClientOrder) { co.Order.LatePen = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			co := valid
			tt.mutate(&co)
			err := v.Validate(co)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInvalidOrderDocument, apperrors.Code(err))
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestPlaceParams(t *testing.T) {
	doc, err := ParseDocument([]byte(twoOrders))
	require.NoError(t, err)

	p, err := PlaceParams(doc.ClientOrders[0])
	require.NoError(t, err)
	assert.Equal(t, repository.PlaceOrderParams{
		ClientName:   "Client AA",
		PieceName:    "P5",
		Number:       18,
		Quantity:     8,
		DueDate:      7,
		LatePenalty:  1000,
		EarlyPenalty: 550,
	}, p)

	co := doc.ClientOrders[1]
	co.Order.EarlyPen = "free"
	_, err = PlaceParams(co)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidMoney, apperrors.Code(err))
}

func TestHandleDocument(t *testing.T) {
	placer := newRecordingPlacer()
	s, m := newTestServer(t, placer)

	ids := s.HandleDocument(context.Background(), []byte(twoOrders))
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OrdersPlaced))
}

func TestHandleDocument_SkipsInvalidOrders(t *testing.T) {
	placer := newRecordingPlacer()
	s, m := newTestServer(t, placer)

	doc := `<Orders>
  <ClientOrder><Client NameId="A"/><Order Number="1" WorkPiece="P2" Quantity="1" DueDate="1" LatePen="$1" EarlyPen="$1"/></ClientOrder>
  <ClientOrder><Client NameId="B"/><Order Number="2" WorkPiece="P7" Quantity="3" DueDate="1" LatePen="$1" EarlyPen="$1"/></ClientOrder>
</Orders>`
	ids := s.HandleDocument(context.Background(), []byte(doc))
	assert.Equal(t, []int64{1}, ids)
	require.Len(t, placer.placed, 1)
	assert.Equal(t, "P7", placer.placed[0].PieceName)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.OrderPlaceFailures.WithLabelValues(apperrors.CodeInvalidOrderDocument)))
}

func TestHandleDocument_PlacerError(t *testing.T) {
	placer := newRecordingPlacer()
	placer.err = apperrors.Wrap(errors.New("no rows"), apperrors.CodePieceNotFound, "piece missing")
	s, m := newTestServer(t, placer)

	assert.Empty(t, s.HandleDocument(context.Background(), []byte(twoOrders)))
	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.OrderPlaceFailures.WithLabelValues(apperrors.CodePieceNotFound)))
}

func TestHandleDocument_Garbage(t *testing.T) {
	placer := newRecordingPlacer()
	s, m := newTestServer(t, placer)

	assert.Nil(t, s.HandleDocument(context.Background(), []byte("not xml at all <")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DocumentsRejected))
	assert.Empty(t, placer.placed)
}

func TestServe(t *testing.T) {
	placer := newRecordingPlacer()
	s, _ := newTestServer(t, placer)

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, conn) }()

	client, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte(twoOrders))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-placer.calls:
		case <-time.After(5 * time.Second):
			t.Fatal("order was not placed")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
