// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package notify is the process-wide publish/subscribe channel for
// cross-component signals.
//
// Two topics exist: auth.failed, raised by the API client when the server
// rejects the session token and consumed by the session guard; and notice,
// carrying non-entity server events (config reloads, system warnings and
// errors) to whoever presents them. The bus is a watermill in-process
// gochannel; subscribers that are not yet subscribed when a message is
// published do not receive it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/streamboard/internal/logging"
)

// Topics
const (
	TopicAuthFailed = "auth.failed"
	TopicNotice     = "notice"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("notify: bus closed")

// AuthFailure is the payload of an auth.failed signal.
type AuthFailure struct {
	Operation  string    `json:"operation"`
	StatusCode int       `json:"status_code"`
	At         time.Time `json:"at"`
}

// Notice is a non-entity server event forwarded to observers.
type Notice struct {
	Kind     string    `json:"kind"` // config.reloaded, system.warning, system.error
	Message  string    `json:"message,omitempty"`
	StreamID string    `json:"stream_id,omitempty"`
	At       time.Time `json:"at"`
}

// Bus is an in-process pub/sub channel.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
	closed atomic.Bool
}

// NewBus creates a bus. Publish returns once every subscriber has handled the
// message, so subscribers observe messages in publish order.
func NewBus() *Bus {
	logger := logging.NewWatermillAdapter()
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
		logger: logger,
	}
}

// PublishAuthFailed raises the authentication-failed signal.
func (b *Bus) PublishAuthFailed(f AuthFailure) error {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	return b.publish(TopicAuthFailed, f)
}

// PublishNotice forwards a non-entity event.
func (b *Bus) PublishNotice(n Notice) error {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	return b.publish(TopicNotice, n)
}

func (b *Bus) publish(topic string, v interface{}) error {
	if b.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set("topic", topic)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// OnAuthFailed subscribes fn to auth.failed until ctx is cancelled.
// The subscription is in place when OnAuthFailed returns.
func (b *Bus) OnAuthFailed(ctx context.Context, fn func(AuthFailure)) error {
	return listen(ctx, b, TopicAuthFailed, fn)
}

// OnNotice subscribes fn to notice until ctx is cancelled.
func (b *Bus) OnNotice(ctx context.Context, fn func(Notice)) error {
	return listen(ctx, b, TopicNotice, fn)
}

// listen subscribes synchronously and dispatches decoded payloads on one
// goroutine, in publish order.
func listen[T any](ctx context.Context, b *Bus, topic string, fn func(T)) error {
	if b.closed.Load() {
		return ErrClosed
	}
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			var v T
			if err := json.Unmarshal(msg.Payload, &v); err != nil {
				b.logger.Error("Dropping undecodable message", err, watermill.LogFields{
					"message_uuid": msg.UUID,
					"topic":        topic,
				})
				msg.Ack()
				continue
			}
			fn(v)
			msg.Ack()
		}
	}()
	return nil
}

// Close shuts the bus down; subscriber channels are closed.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.pubsub.Close()
}
