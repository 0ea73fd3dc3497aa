// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/taibuivan/foundersbase/internal/platform/config"
)

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

// NewSMTPSender creates an SMTP sender from the mail configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
	}
}

/*
Send dials the relay and delivers a multipart (text + HTML) message.

Description: gomail dials with its own fixed timeout. The context only bounds
how long the caller waits; an abandoned attempt finishes in the background.
*/
func (sender *SMTPSender) Send(context context.Context, message Message) error {
	if err := context.Err(); err != nil {
		return fmt.Errorf("smtp_send_failed: %w", err)
	}

	envelope := buildSMTPMessage(sender.from, sender.fromName, message)
	done := make(chan error, 1)

	go func() {
		done <- sender.dialer.DialAndSend(envelope)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp_send_failed: %w", err)
		}
		return nil
	case <-context.Done():
		return fmt.Errorf("smtp_send_failed: %w", context.Err())
	}
}

func buildSMTPMessage(from, fromName string, message Message) *gomail.Message {
	envelope := gomail.NewMessage()
	envelope.SetAddressHeader("From", from, fromName)
	if message.ToName != "" {
		envelope.SetAddressHeader("To", message.To, message.ToName)
	} else {
		envelope.SetHeader("To", message.To)
	}
	envelope.SetHeader("Subject", message.Subject)
	envelope.SetBody("text/plain", message.Text)
	envelope.AddAlternative("text/html", message.HTML)
	return envelope
}
