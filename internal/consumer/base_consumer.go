package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

const (
	defaultExchange   = "gate.direct"
	defaultRoutingKey = "command"
)

// BaseConsumer wires RabbitMQ connectivity, queue declaration and worker handling.
type BaseConsumer struct {
	conn         *amqp.Connection
	queue        string
	dlq          string
	prefetch     int
	workerCount  int
	logger       *slog.Logger
	exchangeName string
	routingKey   string
}

func NewBaseConsumer(conn *amqp.Connection, queue, dlq string, prefetch, workerCount int, logger *slog.Logger) *BaseConsumer {
	if prefetch <= 0 {
		prefetch = 10
	}
	if workerCount <= 0 {
		workerCount = 2
	}
	return &BaseConsumer{
		conn:         conn,
		queue:        queue,
		dlq:          dlq,
		prefetch:     prefetch,
		workerCount:  workerCount,
		logger:       logger,
		exchangeName: defaultExchange,
		routingKey:   defaultRoutingKey,
	}
}

// Start consumes until ctx is cancelled or the delivery channel closes.
func (c *BaseConsumer) Start(ctx context.Context, handler func(context.Context, amqp.Delivery) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.setupQueue(ch); err != nil {
		return fmt.Errorf("queue setup failed: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	c.logger.Info("consuming commands",
		slog.String("queue", c.queue),
		slog.Int("workers", c.workerCount),
		slog.Int("prefetch", c.prefetch))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						return
					}
					if err := handler(ctx, msg); err != nil {
						c.logger.Error("handler returned error", slog.Int("worker", id), slog.Any("error", err))
					}
				}
			}
		}(i)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		<-done
	case <-done:
		if ctx.Err() == nil {
			return fmt.Errorf("delivery channel closed for queue %s", c.queue)
		}
	}
	return nil
}

func (c *BaseConsumer) setupQueue(ch *amqp.Channel) error {
	args := amqp.Table{}
	if c.dlq != "" {
		args["x-dead-letter-exchange"] = ""
		args["x-dead-letter-routing-key"] = c.dlq
	}

	if err := ch.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		c.queue,
		true,
		false,
		false,
		false,
		args,
	); err != nil {
		return err
	}

	if err := ch.QueueBind(
		c.queue,
		c.routingKey,
		c.exchangeName,
		false,
		nil,
	); err != nil {
		return err
	}

	if c.dlq != "" {
		if _, err := ch.QueueDeclare(
			c.dlq,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return err
		}
	}
	return nil
}
