package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// NewNotificationLog returns a size-rotated append-only log file.
func NewNotificationLog(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

// Consumer drains the notification queue and appends one line per
// message to out.  It stands in for the push/mail delivery service.
type Consumer struct {
	url   string
	queue string
	out   io.Writer
	log   *logrus.Entry
}

// NewConsumer returns a Consumer writing to out.
func NewConsumer(url, queue string, out io.Writer) *Consumer {
	return &Consumer{url: url, queue: queue, out: out, log: logrus.WithField("pkg", "queue")}
}

// Run connects, consumes and reconnects with backoff until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("notification consumer: dial failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.WithError(err).Warn("notification consumer: loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("notification consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "queue declare")
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "queue consume")
	}

	for d := range msgs {
		if err := c.handle(d.Body); err != nil {
			c.log.WithError(err).WithField("message_id", d.MessageId).Warn("notification consumer: message rejected")
			// no requeue, a poison message would loop forever
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handle(body []byte) error {
	var msg NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return errors.Wrap(err, "unmarshal")
	}
	if _, err := io.WriteString(c.out, FormatNotification(msg)); err != nil {
		return errors.Wrap(err, "write log")
	}
	return nil
}

// FormatNotification renders a message as one log line with payload keys
// in sorted order.
func FormatNotification(msg NotificationMessage) string {
	keys := make([]string, 0, len(msg.Payload))
	for k := range msg.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | user_id=%d", msg.CreatedAt, msg.Kind, msg.UserID)
	for _, k := range keys {
		v := msg.Payload[k]
		if s, ok := v.(string); ok {
			fmt.Fprintf(&b, " | %s=%q", k, s)
			continue
		}
		fmt.Fprintf(&b, " | %s=%v", k, v)
	}
	b.WriteByte('\n')
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
