package service

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.EmailSender = (*EmailService)(nil)

// EmailService sends HTML mails over SMTP / Envoie les emails HTML via SMTP
type EmailService struct {
	cfg config.SMTPConfig
}

// NewEmailService creates email service with config validation / Crée le service email avec validation de la config
func NewEmailService(cfg *config.Config) (*EmailService, error) {
	smtpCfg := cfg.SMTP
	if smtpCfg.Host == "" {
		// Local catcher (mailpit) / Capteur local (mailpit)
		smtpCfg.Host = "localhost"
		smtpCfg.Port = 1025
	}
	if !isLocalCatcher(smtpCfg) {
		if err := validateSMTPConfig(smtpCfg); err != nil {
			return nil, fmt.Errorf("invalid SMTP configuration: %w", err)
		}
	}
	if smtpCfg.From == "" {
		smtpCfg.From = "no-reply@chantier-direct.fr"
	}
	return &EmailService{cfg: smtpCfg}, nil
}

func isLocalCatcher(c config.SMTPConfig) bool {
	return c.Host == "localhost" && c.Port == 1025
}

// validateSMTPConfig validates SMTP settings / Valide les paramètres SMTP
func validateSMTPConfig(smtp config.SMTPConfig) error {
	if smtp.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if smtp.Port <= 0 || smtp.Port > 65535 {
		return fmt.Errorf("SMTP port must be between 1 and 65535")
	}
	if smtp.From == "" {
		return fmt.Errorf("SMTP from address is required")
	}
	return nil
}

// buildMessage renders headers and body / Construit les en-têtes et le corps
func buildMessage(from string, msg ports.Email) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", from)
	header("To", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		header("Reply-To", msg.ReplyTo)
	}
	header("Subject", "=?UTF-8?B?"+base64.StdEncoding.EncodeToString([]byte(msg.Subject))+"?=")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// Send delivers one message / Envoie un message
func (e *EmailService) Send(ctx context.Context, msg ports.Email) error {
	if len(msg.To) == 0 {
		return errors.New("email has no recipient")
	}
	for _, addr := range append(append([]string{}, msg.To...), msg.ReplyTo) {
		if strings.ContainsAny(addr, "\r\n") {
			return errors.New("invalid email header value")
		}
	}

	raw := buildMessage(e.cfg.From, msg)
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	if isLocalCatcher(e.cfg) {
		ch := make(chan error, 1)
		go func() {
			ch <- smtp.SendMail(addr, nil, e.cfg.From, msg.To, raw)
		}()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tlsConfig := &tls.Config{
		ServerName: e.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	conn := tls.Client(rawConn, tlsConfig)
	defer conn.Close()

	if err := conn.HandshakeContext(ctx); err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if e.cfg.Username != "" {
		if err = client.Auth(smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)); err != nil {
			return err
		}
	}
	if err = client.Mail(e.cfg.From); err != nil {
		return err
	}
	for _, to := range msg.To {
		if err = client.Rcpt(to); err != nil {
			return fmt.Errorf("rcpt %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(raw); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
