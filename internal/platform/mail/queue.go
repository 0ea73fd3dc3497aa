// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueSender publishes rendered messages to a durable RabbitMQ queue.
// A separate worker owns actual delivery.
type QueueSender struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewQueueSender dials RabbitMQ and declares the durable queue.
func NewQueueSender(url, queue string) (*QueueSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("mail_queue_dial_failed: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mail_queue_channel_failed: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("mail_queue_declare_failed: %w", err)
	}

	return &QueueSender{conn: conn, channel: channel, queue: queue}, nil
}

// Send publishes the message as persistent JSON.
func (sender *QueueSender) Send(context context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("mail_queue_encode_failed: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	sender.mu.Lock()
	defer sender.mu.Unlock()

	err = sender.channel.PublishWithContext(context, "", sender.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         message.Template,
	})
	if err != nil {
		return fmt.Errorf("mail_queue_publish_failed: %w", err)
	}
	return nil
}

// Close releases the channel and the connection.
func (sender *QueueSender) Close() {
	_ = sender.channel.Close()
	_ = sender.conn.Close()
}
