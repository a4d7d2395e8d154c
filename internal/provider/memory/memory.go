// Package memory implements an in-memory mailbox provider. It records
// every mutation it is asked to perform, which makes it the provider
// of choice for tests and offline integration runs.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nhle/stoppls/internal/model"
	"github.com/nhle/stoppls/internal/provider"
)

// SentReply records a reply sent through the provider.
type SentReply struct {
	Original model.EmailMessage
	Text     string
	HTML     string
}

// AppliedLabel records a label applied through the provider.
type AppliedLabel struct {
	Message model.EmailMessage
	Label   string
}

// SentEmail records a standalone email sent through the provider.
type SentEmail struct {
	To       string
	Subject  string
	BodyText string
	BodyHTML string
	SentAt   time.Time
}

// Provider is an in-memory mailbox. The zero value is usable but
// disconnected.
type Provider struct {
	mu        sync.Mutex
	connected bool

	messages []model.EmailMessage

	replies  []SentReply
	archived []model.EmailMessage
	labeled  []AppliedLabel
	sent     []SentEmail
}

var _ provider.Mailbox = (*Provider)(nil)

// New creates a disconnected in-memory provider.
func New() *Provider {
	return &Provider{}
}

// Connect marks the provider as connected. It never fails.
func (p *Provider) Connect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connected = true
	return nil
}

// Disconnect marks the provider as disconnected.
func (p *Provider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connected = false
	return nil
}

// IsConnected reports the connection state.
func (p *Provider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connected
}

// GetMessages returns stored messages matching the options.
func (p *Provider) GetMessages(
	_ context.Context, opts provider.FetchOptions,
) ([]model.EmailMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil, provider.ErrNotConnected
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = provider.DefaultFetchLimit
	}

	var result []model.EmailMessage
	for _, msg := range p.messages {
		if len(opts.FromAddresses) > 0 && !senderMatches(msg.Sender, opts.FromAddresses) {
			continue
		}
		if !opts.Since.IsZero() {
			if msg.Date.IsZero() || !msg.Date.After(opts.Since) {
				continue
			}
		}
		result = append(result, msg)
		if len(result) >= limit {
			break
		}
	}

	return result, nil
}

// GetMessageByID returns the stored message with the given ID, or nil.
func (p *Provider) GetMessageByID(
	_ context.Context, messageID string,
) (*model.EmailMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil, provider.ErrNotConnected
	}

	for _, msg := range p.messages {
		if msg.MessageID == messageID {
			found := msg
			return &found, nil
		}
	}

	return nil, nil
}

// SendReply records the reply and reports success.
func (p *Provider) SendReply(
	_ context.Context, original model.EmailMessage, text, html string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return false, provider.ErrNotConnected
	}

	p.replies = append(p.replies, SentReply{
		Original: original,
		Text:     text,
		HTML:     html,
	})
	return true, nil
}

// ArchiveMessage records the archive and reports success.
func (p *Provider) ArchiveMessage(
	_ context.Context, msg model.EmailMessage,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return false, provider.ErrNotConnected
	}

	p.archived = append(p.archived, msg)
	return true, nil
}

// ApplyLabel records the label application and reports success.
func (p *Provider) ApplyLabel(
	_ context.Context, msg model.EmailMessage, label string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return false, provider.ErrNotConnected
	}

	p.labeled = append(p.labeled, AppliedLabel{Message: msg, Label: label})
	return true, nil
}

// SendEmail records the email and reports success.
func (p *Provider) SendEmail(
	_ context.Context, to, subject, text, html string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return false, provider.ErrNotConnected
	}

	p.sent = append(p.sent, SentEmail{
		To:       to,
		Subject:  subject,
		BodyText: text,
		BodyHTML: html,
		SentAt:   time.Now(),
	})
	return true, nil
}

// AddMessage seeds a message into the mailbox.
func (p *Provider) AddMessage(msg model.EmailMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = append(p.messages, msg)
}

// ClearMessages drops all stored messages and recorded mutations.
func (p *Provider) ClearMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = nil
	p.replies = nil
	p.archived = nil
	p.labeled = nil
	p.sent = nil
}

// Replies returns the replies sent so far.
func (p *Provider) Replies() []SentReply {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]SentReply(nil), p.replies...)
}

// Archived returns the messages archived so far.
func (p *Provider) Archived() []model.EmailMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]model.EmailMessage(nil), p.archived...)
}

// Labeled returns the label applications so far.
func (p *Provider) Labeled() []AppliedLabel {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]AppliedLabel(nil), p.labeled...)
}

// SentEmails returns the standalone emails sent so far.
func (p *Provider) SentEmails() []SentEmail {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]SentEmail(nil), p.sent...)
}

// senderMatches reports whether sender contains any of the addresses,
// case-insensitively.
func senderMatches(sender string, addresses []string) bool {
	lowered := strings.ToLower(sender)
	for _, addr := range addresses {
		if strings.Contains(lowered, strings.ToLower(addr)) {
			return true
		}
	}
	return false
}
