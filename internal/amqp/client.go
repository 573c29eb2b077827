package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dailyexpense/internal/report"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrCircuitOpen is returned while the broker is considered unreachable.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client publishes expense events and report exports on a direct exchange.
// Publishing never retries: after maxFailures consecutive connection errors
// the client fails fast until openTimeout has passed.
type Client struct {
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string // expense events
	exportQueue  string // report exports

	state        int32
	failureCount int64
	mu           sync.Mutex
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName, exportQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		url:          url,
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		exportQueue:  exportQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.queueName, c.exportQueue} {
		if queue == "" {
			continue
		}
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key is the queue name on a direct exchange.
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// PublishExpenseEvent publishes an expense change event.
func (c *Client) PublishExpenseEvent(ctx context.Context, evt *ExpenseEvent) error {
	body, err := evt.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = c.publish(ctx, c.queueName, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    evt.MessageID,
		Type:         evt.Type,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published expense event",
		"id", evt.ID,
		"type", evt.Type,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// Export implements report.Exporter by queueing the document for the export worker.
func (c *Client) Export(ctx context.Context, doc report.Document) error {
	msgID := uuid.NewString()
	err := c.publish(ctx, c.exportQueue, amqp091.Publishing{
		ContentType:  doc.MIMEType,
		DeliveryMode: amqp091.Persistent,
		MessageId:    msgID,
		Headers:      amqp091.Table{"title": doc.Title},
		Timestamp:    time.Now(),
		Body:         []byte(doc.Body),
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Queued report export",
		"message_id", msgID,
		"bytes", len(doc.Body),
		"queue", c.exportQueue)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, msg amqp091.Publishing) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		msg,
	)
	if err != nil {
		if isConnectionError(err) {
			c.recordFailure()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// ConsumeReportExports delivers queued report exports to handler until ctx is
// cancelled. Messages are acked on success and dropped (not requeued) on
// handler failure: no retries.
func (c *Client) ConsumeReportExports(ctx context.Context, handler func(context.Context, *ReportExport) error) error {
	return c.consume(ctx, c.exportQueue, func(delivery amqp091.Delivery) (string, error) {
		export := &ReportExport{
			MessageID: delivery.MessageId,
			MIMEType:  delivery.ContentType,
			Body:      delivery.Body,
			CreatedAt: delivery.Timestamp,
		}
		if title, ok := delivery.Headers["title"].(string); ok {
			export.Title = title
		}
		return export.MessageID, handler(ctx, export)
	})
}

// ConsumeExpenseEvents delivers expense events to handler until ctx is
// cancelled, with the same ack policy as ConsumeReportExports.
func (c *Client) ConsumeExpenseEvents(ctx context.Context, handler func(context.Context, *ExpenseEvent) error) error {
	return c.consume(ctx, c.queueName, func(delivery amqp091.Delivery) (string, error) {
		evt, err := ExpenseEventFromJSON(delivery.Body)
		if err != nil {
			return delivery.MessageId, fmt.Errorf("decode expense event: %w", err)
		}
		return evt.MessageID, handler(ctx, evt)
	})
}

func (c *Client) consume(ctx context.Context, queue string, handle func(amqp091.Delivery) (string, error)) error {
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", queue, err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel for %s closed", queue)
			}

			msgID, err := handle(delivery)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"queue", queue,
					"message_id", msgID)
				delivery.Nack(false, false)
				continue
			}

			delivery.Ack(false)
			slog.DebugContext(ctx, "Handled message", "queue", queue, "message_id", msgID)
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if atomic.LoadInt32(&c.state) == StateHalfOpen || atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
		slog.Warn("AMQP circuit breaker opened", "failures", atomic.LoadInt64(&c.failureCount))
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
