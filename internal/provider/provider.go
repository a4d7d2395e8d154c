// Package provider defines the mailbox collaborator contract the
// monitor and reporter consume. Concrete providers (IMAP/SMTP, the
// in-memory test provider) live in subpackages.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/stoppls/internal/model"
)

// ErrNotConnected is returned by every mailbox operation invoked
// while the provider is disconnected.
var ErrNotConnected = errors.New("not connected to email provider")

// FetchOptions narrows a GetMessages call.
type FetchOptions struct {
	// FromAddresses restricts results to messages whose sender
	// contains one of the given addresses. Empty means no filtering.
	FromAddresses []string

	// Since restricts results to messages delivered strictly after
	// this time. Zero means no time filtering.
	Since time.Time

	// Limit caps the number of returned messages. Zero or negative
	// means the provider default of 10.
	Limit int
}

// DefaultFetchLimit is applied when FetchOptions.Limit is unset.
const DefaultFetchLimit = 10

// Mailbox is the contract for a mail service the core acts against.
// All mutating calls return ErrNotConnected when invoked while
// disconnected.
type Mailbox interface {
	// Connect establishes a connection.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down.
	Disconnect(ctx context.Context) error

	// IsConnected reports whether the provider is currently connected.
	IsConnected() bool

	// GetMessages retrieves messages matching the options.
	GetMessages(ctx context.Context, opts FetchOptions) ([]model.EmailMessage, error)

	// GetMessageByID retrieves a single message, or nil when no
	// message with the given ID exists.
	GetMessageByID(ctx context.Context, messageID string) (*model.EmailMessage, error)

	// SendReply sends a reply to the original message. The reported
	// bool is the provider's success flag.
	SendReply(ctx context.Context, original model.EmailMessage, text, html string) (bool, error)

	// ArchiveMessage removes the message from its current location.
	ArchiveMessage(ctx context.Context, msg model.EmailMessage) (bool, error)

	// ApplyLabel attaches the named label to the message.
	ApplyLabel(ctx context.Context, msg model.EmailMessage, label string) (bool, error)

	// SendEmail sends a standalone email.
	SendEmail(ctx context.Context, to, subject, text, html string) (bool, error)
}
