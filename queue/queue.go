package queue

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/bunnyq"
	"github.com/sksmith/stock-ledger/core/bulk"
	"github.com/sksmith/stock-ledger/core/inventory"
	"github.com/streadway/amqp"
)

type stockQueue struct {
	queue               *bunnyq.BunnyQ
	stockExchange       string
	reservationExchange string
}

func New(bq *bunnyq.BunnyQ, stockExchange, reservationExchange string) inventory.Queue {
	return &stockQueue{queue: bq, stockExchange: stockExchange, reservationExchange: reservationExchange}
}

func (q *stockQueue) PublishStock(ctx context.Context, stock inventory.StockRecord) error {
	body, err := json.Marshal(stock)
	if err != nil {
		return errors.WithMessage(err, "failed to serialize message for queue")
	}
	if err = q.queue.Publish(ctx, q.stockExchange, body); err != nil {
		return errors.WithMessage(err, "failed to send stock update to queue")
	}
	return nil
}

func (q *stockQueue) PublishReservation(ctx context.Context, event inventory.ReservationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.WithMessage(err, "error marshalling reservation event to send to queue")
	}
	if err = q.queue.Publish(ctx, q.reservationExchange, body); err != nil {
		return errors.WithMessage(err, "error publishing reservation event")
	}
	return nil
}

// StockUpdateConsumer feeds stock update records arriving on a queue into the bulk pipeline, one record per
// message. Messages that cannot be decoded or applied go to the dead letter exchange.
type StockUpdateConsumer struct {
	queue       *bunnyq.BunnyQ
	queueName   string
	dltExchange string
	updater     bulk.Updater
	deadLetter  func(ctx context.Context, body []byte)
}

func NewStockUpdateConsumer(bq *bunnyq.BunnyQ, queueName, dltExchange string, updater bulk.Updater) *StockUpdateConsumer {
	c := &StockUpdateConsumer{
		queue:       bq,
		queueName:   queueName,
		dltExchange: dltExchange,
		updater:     updater,
	}
	c.deadLetter = c.sendToDlt
	return c
}

// Consume blocks, streaming the queue until ctx is done.
func (c *StockUpdateConsumer) Consume(ctx context.Context) {
	c.queue.Stream(ctx, c.queueName, func(delivery amqp.Delivery) {
		c.handle(ctx, delivery.Body)
	}, bunnyq.StreamOpAutoAck)
}

func (c *StockUpdateConsumer) handle(ctx context.Context, body []byte) {
	rec := bulk.Record{}
	if err := json.Unmarshal(body, &rec); err != nil {
		log.Error().Err(err).Msg("error unmarshalling stock update, writing to dlt")
		c.deadLetter(ctx, body)
		return
	}

	if _, err := c.updater.Update(ctx, []bulk.Record{rec}); err != nil {
		log.Error().Err(err).Str("productName", rec.ProductName).Msg("error applying stock update, writing to dlt")
		c.deadLetter(ctx, body)
	}
}

func (c *StockUpdateConsumer) sendToDlt(ctx context.Context, body []byte) {
	if err := c.queue.Publish(ctx, c.dltExchange, body); err != nil {
		log.Error().Err(err).Msg("error writing to dlt")
	}
}

func productKey(productID int64) []byte {
	return []byte(strconv.FormatInt(productID, 10))
}
