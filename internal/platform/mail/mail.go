// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mail renders and delivers account notifications.

Templates are produced with Hermes (HTML plus a plain-text alternative) and
handed to a [Sender]. The transport is picked by configuration:

  - log: writes the message to the structured log (development)
  - smtp: delivers through an SMTP relay (gomail)
  - mailgun: delivers through the Mailgun HTTP API
  - queue: publishes the rendered message to RabbitMQ for a mail worker

Delivery is best effort: callers log failures and move on, nothing is retried.
*/
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/matcornic/hermes/v2"

	"github.com/taibuivan/foundersbase/internal/platform/config"
	"github.com/taibuivan/foundersbase/internal/platform/metrics"
)

// sendTimeout bounds a single delivery attempt.
const sendTimeout = 10 * time.Second

// Template names, also used as metric labels.
const (
	TemplateVerifyEmail   = "verify_email"
	TemplateResetPassword = "reset_password"
	TemplateChangeEmail   = "change_email"
)

// Recipient identifies who a notification is addressed to.
type Recipient struct {
	Email string
	Name  string
}

// Message is a fully rendered email.
type Message struct {
	Template string `json:"template"`
	To       string `json:"to"`
	ToName   string `json:"to_name,omitempty"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
}

// Sender delivers rendered messages over one transport.
type Sender interface {
	Send(context context.Context, message Message) error
}

// # Mailer

// Mailer renders the account templates and passes them to a [Sender].
type Mailer struct {
	sender    Sender
	hermes    hermes.Hermes
	publicURL string
}

// NewMailer builds a Mailer whose links point at publicURL.
func NewMailer(sender Sender, productName, publicURL string) *Mailer {
	return &Mailer{
		sender:    sender,
		publicURL: publicURL,
		hermes: hermes.Hermes{
			Theme:         new(hermes.Default),
			TextDirection: hermes.TDLeftToRight,
			Product: hermes.Product{
				Name:        productName,
				Link:        publicURL,
				Copyright:   "© Foundersbase",
				TroubleText: "If the '{ACTION}' button does not work, copy and paste the URL below into your web browser.",
			},
		},
	}
}

// SendVerification mails the email verification link.
func (mailer *Mailer) SendVerification(context context.Context, to Recipient, token string) error {
	return mailer.send(context, TemplateVerifyEmail, to, "Verify your email address", hermes.Body{
		Name:   to.Name,
		Intros: []string{"Welcome to Foundersbase! Please confirm that this is your email address."},
		Actions: []hermes.Action{{
			Instructions: "The link is valid for 24 hours.",
			Button:       hermes.Button{Text: "Verify email", Link: mailer.link("/verify-email", token)},
		}},
		Outros: []string{"If you did not create an account, you can ignore this email."},
	})
}

// SendPasswordReset mails the password reset link.
func (mailer *Mailer) SendPasswordReset(context context.Context, to Recipient, token string) error {
	return mailer.send(context, TemplateResetPassword, to, "Reset your password", hermes.Body{
		Name:   to.Name,
		Intros: []string{"We received a request to reset your Foundersbase password."},
		Actions: []hermes.Action{{
			Instructions: "The link is valid for 2 hours and can be used once.",
			Button:       hermes.Button{Text: "Reset password", Link: mailer.link("/reset-password", token)},
		}},
		Outros: []string{"If you did not ask for a reset, no action is needed."},
	})
}

// SendEmailChange mails the confirmation link to the new address.
func (mailer *Mailer) SendEmailChange(context context.Context, to Recipient, token string) error {
	return mailer.send(context, TemplateChangeEmail, to, "Confirm your new email address", hermes.Body{
		Name:   to.Name,
		Intros: []string{"Please confirm that you want to use this address for your Foundersbase account."},
		Actions: []hermes.Action{{
			Instructions: "The link is valid for 2 days.",
			Button:       hermes.Button{Text: "Confirm email", Link: mailer.link("/confirm-email", token)},
		}},
	})
}

func (mailer *Mailer) send(ctx context.Context, template string, to Recipient, subject string, body hermes.Body) error {
	email := hermes.Email{Body: body}

	html, err := mailer.hermes.GenerateHTML(email)
	if err != nil {
		return fmt.Errorf("mail_render_html_failed: %w", err)
	}

	text, err := mailer.hermes.GeneratePlainText(email)
	if err != nil {
		return fmt.Errorf("mail_render_text_failed: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err = mailer.sender.Send(sendCtx, Message{
		Template: template,
		To:       to.Email,
		ToName:   to.Name,
		Subject:  subject,
		HTML:     html,
		Text:     text,
	})

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.MailSentTotal.WithLabelValues(template, result).Inc()

	if err != nil {
		return fmt.Errorf("mail_send_failed: %w", err)
	}
	return nil
}

func (mailer *Mailer) link(path, token string) string {
	return mailer.publicURL + path + "?token=" + url.QueryEscape(token)
}

// # Driver Selection

// NewSender returns the transport configured by MAIL_DRIVER and a close function.
func NewSender(cfg config.MailConfig, logger *slog.Logger) (Sender, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case "smtp":
		return NewSMTPSender(cfg), noop, nil
	case "mailgun":
		return NewMailgunSender(cfg), noop, nil
	case "queue":
		sender, err := NewQueueSender(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, noop, err
		}
		return sender, sender.Close, nil
	default:
		return NewLogSender(logger), noop, nil
	}
}
