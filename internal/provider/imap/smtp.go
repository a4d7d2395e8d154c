package imap

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/nhle/stoppls/internal/model"
)

// composeReply builds an RFC 5322 reply to the original message, with
// threading headers and an optional HTML alternative.
func composeReply(
	from string, original model.EmailMessage, text, html string,
) ([]byte, error) {
	subject := original.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: original.Sender}})
	h.SetSubject(subject)

	if original.MessageID != "" {
		h.SetMsgIDList("In-Reply-To", []string{original.MessageID})
		h.SetMsgIDList("References", []string{original.MessageID})
	}

	return composeBody(h, text, html)
}

// composeEmail builds a standalone RFC 5322 message.
func composeEmail(
	from, to, subject, text, html string,
) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	return composeBody(h, text, html)
}

// composeBody writes the text part and, when present, the HTML
// alternative under the given header.
func composeBody(h mail.Header, text, html string) ([]byte, error) {
	var buf bytes.Buffer

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline writer: %w", err)
	}

	var th mail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	tw, err := iw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(tw, text); err != nil {
		return nil, fmt.Errorf("writing text part: %w", err)
	}
	tw.Close()

	if html != "" {
		var hh mail.InlineHeader
		hh.Set("Content-Type", "text/html; charset=utf-8")
		hw, err := iw.CreatePart(hh)
		if err != nil {
			return nil, fmt.Errorf("creating html part: %w", err)
		}
		if _, err := io.WriteString(hw, html); err != nil {
			return nil, fmt.Errorf("writing html part: %w", err)
		}
		hw.Close()
	}

	iw.Close()
	mw.Close()

	return buf.Bytes(), nil
}

// submit delivers a composed message to the configured SMTP server.
func (p *Provider) submit(to string, raw []byte) error {
	addr := p.cfg.SMTPHost + ":" + p.cfg.SMTPPort
	tlsConfig := &tls.Config{ServerName: p.cfg.SMTPHost}

	var c *smtp.Client
	var err error

	if p.cfg.TLS {
		c, err = smtp.DialTLS(addr, tlsConfig)
	} else {
		c, err = smtp.DialStartTLS(addr, tlsConfig)
	}
	if err != nil {
		return fmt.Errorf("connecting to SMTP %s: %w", addr, err)
	}
	defer c.Close()

	auth := sasl.NewPlainClient("", p.cfg.Username, p.cfg.Password)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	if err := c.Mail(p.cfg.Username, nil); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := wc.Write(raw); err != nil {
		_ = wc.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing data writer: %w", err)
	}

	return c.Quit()
}
