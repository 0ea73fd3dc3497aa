// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/taibuivan/foundersbase/internal/platform/config"
)

// MailgunSender delivers through the Mailgun HTTP API.
type MailgunSender struct {
	client *mailgun.MailgunImpl
	from   string
}

// NewMailgunSender creates a Mailgun sender for the configured domain.
func NewMailgunSender(cfg config.MailConfig) *MailgunSender {
	client := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey)
	if cfg.MailgunEU {
		client.SetAPIBase(mailgun.APIBaseEU)
	}

	return &MailgunSender{
		client: client,
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
	}
}

// Send posts the message to Mailgun.
func (sender *MailgunSender) Send(context context.Context, message Message) error {
	envelope := sender.client.NewMessage(sender.from, message.Subject, message.Text, message.To)
	envelope.SetHtml(message.HTML)
	envelope.AddTag(message.Template)

	if _, _, err := sender.client.Send(context, envelope); err != nil {
		return fmt.Errorf("mailgun_send_failed: %w", err)
	}
	return nil
}
