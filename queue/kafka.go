package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sksmith/stock-ledger/core/inventory"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes stock and reservation events to Kafka topics keyed by product id, so every event
// for a product lands on the same partition in order.
type KafkaPublisher struct {
	stock       messageWriter
	reservation messageWriter
}

func NewKafkaPublisher(brokers []string, stockTopic, reservationTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		stock:       newWriter(brokers, stockTopic),
		reservation: newWriter(brokers, reservationTopic),
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaPublisher) PublishStock(ctx context.Context, stock inventory.StockRecord) error {
	body, err := json.Marshal(stock)
	if err != nil {
		return errors.WithMessage(err, "failed to serialize stock update")
	}
	err = p.stock.WriteMessages(ctx, kafka.Message{
		Key:   productKey(stock.ProductID),
		Value: body,
		Time:  time.Now(),
	})
	if err != nil {
		return errors.WithMessage(err, "failed to send stock update to kafka")
	}
	return nil
}

func (p *KafkaPublisher) PublishReservation(ctx context.Context, event inventory.ReservationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.WithMessage(err, "failed to serialize reservation event")
	}
	err = p.reservation.WriteMessages(ctx, kafka.Message{
		Key:   productKey(event.ProductID),
		Value: body,
		Time:  event.At,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to send reservation event to kafka")
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	stockErr := p.stock.Close()
	if err := p.reservation.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(stockErr)
}
