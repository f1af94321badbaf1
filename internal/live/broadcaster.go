// Package live fans engine updates out to connected clients through
// Redis pub/sub.  Every scope maps to the channel "live:<scope>".
package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPrefix = "live:"

// Update is one message on a live channel.
type Update struct {
	Topic  string    `json:"topic"`
	Action string    `json:"action"`
	Data   any       `json:"data,omitempty"`
	At     time.Time `json:"at"`
}

// Broadcaster publishes and subscribes to live channels.
type Broadcaster struct {
	rdb *redis.Client
	log *logrus.Entry
}

// NewBroadcaster wraps a Redis client.
func NewBroadcaster(rdb *redis.Client) *Broadcaster {
	return &Broadcaster{rdb: rdb, log: logrus.WithField("pkg", "live")}
}

// Channel returns the Redis channel of scope.
func Channel(scope string) string { return channelPrefix + scope }

// BroadcastLiveUpdate implements service.Broadcaster.
func (b *Broadcaster) BroadcastLiveUpdate(ctx context.Context, scope, topic, action string, data any) error {
	body, err := json.Marshal(Update{Topic: topic, Action: action, Data: data, At: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "marshal live update")
	}
	if err := b.rdb.Publish(ctx, Channel(scope), body).Err(); err != nil {
		return errors.Wrapf(err, "publish %s", Channel(scope))
	}
	return nil
}

// Subscribe delivers the updates of scope until ctx is done.  Messages
// that do not decode are dropped.
func (b *Broadcaster) Subscribe(ctx context.Context, scope string) (<-chan Update, error) {
	sub := b.rdb.Subscribe(ctx, Channel(scope))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrapf(err, "subscribe %s", Channel(scope))
	}

	out := make(chan Update, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(m.Payload), &u); err != nil {
					b.log.WithError(err).WithField("channel", m.Channel).Debug("dropping undecodable update")
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
