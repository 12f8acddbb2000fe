package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sksmith/stock-ledger/core/inventory"
)

type recordingWriter struct {
	msgs     []kafka.Message
	writeErr error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherRoutesByTopic(t *testing.T) {
	stockW, resW := &recordingWriter{}, &recordingWriter{}
	p := &KafkaPublisher{stock: stockW, reservation: resW}
	ctx := context.Background()

	if err := p.PublishStock(ctx, inventory.StockRecord{ProductID: 42, TotalQuantity: 7}); err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	event := inventory.ReservationEvent{
		Reservation: inventory.Reservation{ID: "r-1", ProductID: 9, Quantity: 2, OrderID: "o-1"},
		Outcome:     inventory.Confirmed,
		At:          at,
	}
	if err := p.PublishReservation(ctx, event); err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}

	if len(stockW.msgs) != 1 || len(resW.msgs) != 1 {
		t.Fatalf("unexpected message counts stock=%d reservation=%d want 1 each", len(stockW.msgs), len(resW.msgs))
	}

	if got := string(stockW.msgs[0].Key); got != string(productKey(42)) {
		t.Errorf("stock key got=%q want=%q", got, productKey(42))
	}
	stock := inventory.StockRecord{}
	if err := json.Unmarshal(stockW.msgs[0].Value, &stock); err != nil {
		t.Fatalf("failed to read stock message: %v", err)
	}
	if stock.ProductID != 42 || stock.TotalQuantity != 7 {
		t.Errorf("unexpected stock message got=%+v", stock)
	}

	if got := string(resW.msgs[0].Key); got != string(productKey(9)) {
		t.Errorf("reservation key got=%q want=%q", got, productKey(9))
	}
	if !resW.msgs[0].Time.Equal(at) {
		t.Errorf("reservation time got=%v want=%v", resW.msgs[0].Time, at)
	}
	got := inventory.ReservationEvent{}
	if err := json.Unmarshal(resW.msgs[0].Value, &got); err != nil {
		t.Fatalf("failed to read reservation message: %v", err)
	}
	if got.ID != "r-1" || got.OrderID != "o-1" || got.Outcome != inventory.Confirmed {
		t.Errorf("unexpected reservation message got=%+v", got)
	}
}

func TestKafkaPublisherErrors(t *testing.T) {
	brokerDown := errors.New("broker unreachable")
	stockW, resW := &recordingWriter{writeErr: brokerDown}, &recordingWriter{writeErr: brokerDown}
	p := &KafkaPublisher{stock: stockW, reservation: resW}

	if err := p.PublishStock(context.Background(), inventory.StockRecord{ProductID: 1}); !errors.Is(err, brokerDown) {
		t.Errorf("unexpected stock error got=%v want=%v", err, brokerDown)
	}
	if err := p.PublishReservation(context.Background(), inventory.ReservationEvent{}); !errors.Is(err, brokerDown) {
		t.Errorf("unexpected reservation error got=%v want=%v", err, brokerDown)
	}

	if err := p.Close(); err != nil {
		t.Errorf("did not want error, got=%v", err)
	}
	if !stockW.closed || !resW.closed {
		t.Errorf("writers not closed stock=%v reservation=%v", stockW.closed, resW.closed)
	}
}

func TestNewKafkaPublisherHashesByKey(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "stock-updates", "reservation-events")
	defer p.Close()

	for name, w := range map[string]messageWriter{"stock-updates": p.stock, "reservation-events": p.reservation} {
		kw, ok := w.(*kafka.Writer)
		if !ok {
			t.Fatalf("writer for %s is %T", name, w)
		}
		if kw.Topic != name {
			t.Errorf("topic got=%s want=%s", kw.Topic, name)
		}
		if _, ok := kw.Balancer.(*kafka.Hash); !ok {
			t.Errorf("balancer for %s got=%T want=*kafka.Hash", name, kw.Balancer)
		}
	}
}
