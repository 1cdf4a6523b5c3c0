package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"

	"github.com/pfrederiksen/events-watch/internal/config"
)

// implicitTLSPort is the SMTPS port, where TLS starts before the SMTP greeting
const implicitTLSPort = 465

// sendFunc delivers a composed message
type sendFunc func(ctx context.Context, e *email.Email, cfg config.SMTP) error

// EmailNotifier sends one email per run listing all new items
type EmailNotifier struct {
	smtp config.SMTP
	msg  config.Message
	send sendFunc
}

// NewEmailNotifier creates an email notifier for the configured SMTP account
func NewEmailNotifier(smtpCfg config.SMTP, msg config.Message) *EmailNotifier {
	return &EmailNotifier{
		smtp: smtpCfg,
		msg:  msg,
		send: sendSMTP,
	}
}

// Compose builds the message for items without sending it
func (n *EmailNotifier) Compose(items []string) *email.Email {
	e := email.NewEmail()
	e.From = n.smtp.From
	e.To = []string{n.smtp.To}
	e.Subject = Subject(n.msg, items)
	e.Text = []byte(Body(n.msg, items))
	return e
}

// Notify implements Notifier
func (n *EmailNotifier) Notify(ctx context.Context, items []string) error {
	if err := ctx.Err(); err != nil {
		return channelError("email", err)
	}
	if err := n.send(ctx, n.Compose(items), n.smtp); err != nil {
		return channelError("email", fmt.Errorf("sending to %s via %s: %w", n.smtp.To, n.smtp.Addr(), err))
	}
	return nil
}

// sendSMTP delivers e over its own connection so that the dial and every exchange
// are bounded by cfg.Timeout and abandoned when ctx is canceled.
func sendSMTP(ctx context.Context, e *email.Email, cfg config.SMTP) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultSMTPTimeout
	}

	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("parsing sender: %w", err)
	}
	raw, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close() // nolint:errcheck
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err = deliver(conn, cfg, from.Address, e.To, raw)
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		return ctxErr
	}
	return err
}

func deliver(conn net.Conn, cfg config.SMTP, sender string, to []string, raw []byte) error {
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	if cfg.Port == implicitTLSPort {
		conn = tls.Client(conn, tlsConfig)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close() // nolint:errcheck
		return err
	}
	defer c.Close() // nolint:errcheck

	if err := c.Hello("localhost"); err != nil {
		return err
	}
	if cfg.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(sender); err != nil {
		return err
	}
	for _, rcpt := range to {
		addr, err := mail.ParseAddress(rcpt)
		if err != nil {
			return fmt.Errorf("parsing recipient: %w", err)
		}
		if err := c.Rcpt(addr.Address); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
