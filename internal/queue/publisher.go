package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/konfi-registration/internal/service"
)

// Publisher sends notification and badge messages to durable queues.  A
// connection is opened per publish.
type Publisher struct {
	url               string
	notificationQueue string
	badgeQueue        string
	dial              func(url string) (*amqp.Connection, error)
	log               *logrus.Entry
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url, notificationQueue, badgeQueue string) *Publisher {
	return &Publisher{
		url:               url,
		notificationQueue: notificationQueue,
		badgeQueue:        badgeQueue,
		dial:              amqp.Dial,
		log:               logrus.WithField("pkg", "queue"),
	}
}

// Notify implements service.Notifier.
func (p *Publisher) Notify(ctx context.Context, userID uint64, kind service.NotificationKind, payload map[string]any) error {
	return p.publish(ctx, p.notificationQueue, NotificationMessage{
		UserID:    userID,
		Kind:      string(kind),
		Payload:   payload,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// CheckAndAwardBadges implements service.BadgeChecker.  Evaluation happens
// asynchronously in the badge engine, so the result is always empty.
func (p *Publisher) CheckAndAwardBadges(ctx context.Context, konfiID uint64) (service.BadgeResult, error) {
	err := p.publish(ctx, p.badgeQueue, BadgeCheckMessage{
		KonfiID:     konfiID,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return service.BadgeResult{}, err
}

func (p *Publisher) publish(ctx context.Context, queue string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	conn, err := p.dial(p.url)
	if err != nil {
		return errors.Wrap(err, "rabbitmq dial")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "rabbitmq channel")
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "declare %s", queue)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		return errors.Wrapf(err, "publish %s", queue)
	}
	p.log.WithField("queue", queue).WithField("message_id", pub.MessageId).Debug("published")
	return nil
}
