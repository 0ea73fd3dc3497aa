// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/foundersbase/internal/platform/constants"
)

// channelPrefix namespaces per-user channels: chat:user:<id>.
const channelPrefix = constants.RedisChannelUserPrefix

// RedisBroker fans realtime events out across API instances.
//
// Push publishes to the recipient's channel; every instance runs [RedisBroker.Run]
// and hands matching frames to its local [Hub].
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	logger *slog.Logger
}

// NewRedisBroker wires a broker to the local hub.
func NewRedisBroker(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, logger: logger}
}

// Push publishes the event. Nobody subscribed is not an error.
func (broker *RedisBroker) Push(context context.Context, userID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("chat_broker_encode_failed: %w", err)
	}

	if err := broker.client.Publish(context, userChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("chat_broker_publish_failed: %w", err)
	}
	return nil
}

/*
Run subscribes to every user channel and delivers frames locally until the context ends.

Returns:
  - error: nil on cancellation, otherwise the subscription failure
*/
func (broker *RedisBroker) Run(context context.Context) error {
	pubsub := broker.client.PSubscribe(context, channelPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription confirmation so startup errors surface here.
	if _, err := pubsub.Receive(context); err != nil {
		if context.Err() != nil {
			return nil
		}
		return fmt.Errorf("chat_broker_subscribe_failed: %w", err)
	}

	broker.logger.Info("chat_broker_subscribed", slog.String("pattern", channelPrefix+"*"))

	messages := pubsub.Channel()
	for {
		select {
		case <-context.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return nil
			}
			userID, found := userFromChannel(message.Channel)
			if !found {
				continue
			}
			broker.hub.Deliver(userID, []byte(message.Payload))
		}
	}
}

func userChannel(userID string) string {
	return channelPrefix + userID
}

func userFromChannel(channel string) (string, bool) {
	userID, found := strings.CutPrefix(channel, channelPrefix)
	return userID, found && userID != ""
}
