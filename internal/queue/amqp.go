package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
)

// AMQPQueue maps each topic onto a durable queue of the same name.
type AMQPQueue struct {
	MaxRetries int
	Log        zerolog.Logger

	conn *amqp.Connection

	mu  sync.Mutex
	pub *amqp.Channel
	wg  sync.WaitGroup
}

func DialAMQP(url string, log zerolog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, appErrors.Wrap(err, "connect to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, appErrors.Wrap(err, "open publish channel")
	}
	return &AMQPQueue{MaxRetries: 3, Log: log, conn: conn, pub: ch}, nil
}

func declare(ch *amqp.Channel, topic string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := declare(q.pub, topic); err != nil {
		return appErrors.Wrapf(err, "declare queue %s", topic)
	}
	return q.publish(topic, payload, 0)
}

// publish expects q.mu held.
func (q *AMQPQueue) publish(topic string, payload []byte, retries int32) error {
	err := q.pub.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{"x-retry-count": retries},
		Body:         payload,
	})
	if err != nil {
		return appErrors.Wrapf(err, "publish to %s", topic)
	}
	return nil
}

// Subscribe consumes topic on its own channel until ctx is done. Failed
// deliveries are republished with an incremented x-retry-count and dropped
// after MaxRetries.
func (q *AMQPQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return appErrors.Wrap(err, "open consume channel")
	}
	if _, err := declare(ch, topic); err != nil {
		ch.Close()
		return appErrors.Wrapf(err, "declare queue %s", topic)
	}
	msgs, err := ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return appErrors.Wrapf(err, "consume %s", topic)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				q.deliver(ctx, topic, d, handler)
			}
		}
	}()
	return nil
}

func (q *AMQPQueue) deliver(ctx context.Context, topic string, d amqp.Delivery, handler Handler) {
	err := handler(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	retries := retryCount(d.Headers)
	log := q.Log.Warn().Err(err).Str("topic", topic).Int32("retry", retries)
	if int(retries) >= q.MaxRetries {
		log.Msg("dropping message after max retries")
		_ = d.Ack(false)
		return
	}
	log.Msg("requeueing failed message")

	q.mu.Lock()
	perr := q.publish(topic, d.Body, retries+1)
	q.mu.Unlock()
	if perr != nil {
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func retryCount(h amqp.Table) int32 {
	switch v := h["x-retry-count"].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	if q.pub != nil {
		q.pub.Close()
	}
	q.mu.Unlock()
	err := q.conn.Close()
	q.wg.Wait()
	return err
}
