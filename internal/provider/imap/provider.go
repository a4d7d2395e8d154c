// Package imap implements the mailbox provider contract against a
// standard IMAP server, with replies and outbound mail submitted over
// SMTP.
package imap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/stoppls/internal/model"
	"github.com/nhle/stoppls/internal/provider"
)

// archiveFolders are tried in order when archiving a message.
var archiveFolders = []string{
	"Archive", "[Gmail]/All Mail", "Archives", "INBOX.Archive",
}

// uidRef locates a previously fetched message on the server.
type uidRef struct {
	folder string
	uid    uint32
}

// Provider is an IMAP/SMTP mailbox. It owns a single IMAP connection,
// established by Connect and reused until Disconnect; the design
// assumes exactly one caller goroutine.
type Provider struct {
	cfg model.MailboxConfig

	mu     sync.Mutex
	client *imapclient.Client

	// uids maps message IDs seen during fetches to their server
	// location, so mutations can address them later.
	uids map[string]uidRef
}

var _ provider.Mailbox = (*Provider)(nil)

// New creates a disconnected IMAP provider.
func New(cfg model.MailboxConfig) *Provider {
	return &Provider{
		cfg:  cfg,
		uids: make(map[string]uidRef),
	}
}

// Connect dials and authenticates the IMAP connection. Connecting an
// already connected provider is a no-op.
func (p *Provider) Connect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil
	}

	client, err := p.dial()
	if err != nil {
		return err
	}

	p.client = client
	return nil
}

// Disconnect logs out and drops the connection.
func (p *Provider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}

	err := p.client.Logout().Wait()
	p.client = nil
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// IsConnected reports whether an IMAP connection is established.
func (p *Provider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.client != nil
}

// GetMessages fetches messages from the watched folders, applying the
// sender and since filters, ordered oldest first.
func (p *Provider) GetMessages(
	_ context.Context, opts provider.FetchOptions,
) ([]model.EmailMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil, provider.ErrNotConnected
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = provider.DefaultFetchLimit
	}

	var all []model.EmailMessage
	for folder := range folderLocations {
		messages, err := p.fetchFolder(p.client, folder, opts.Since, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, messages...)
	}

	filtered := all[:0]
	for _, msg := range all {
		if len(opts.FromAddresses) > 0 && !senderMatches(msg.Sender, opts.FromAddresses) {
			continue
		}
		// The IMAP SINCE criterion has date granularity; enforce the
		// exact boundary here.
		if !opts.Since.IsZero() {
			if msg.Date.IsZero() || !msg.Date.After(opts.Since) {
				continue
			}
		}
		filtered = append(filtered, msg)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.Before(filtered[j].Date)
	})

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return filtered, nil
}

// GetMessageByID searches the watched folders for a message with the
// given Message-ID header. Returns nil when not found.
func (p *Provider) GetMessageByID(
	_ context.Context, messageID string,
) (*model.EmailMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil, provider.ErrNotConnected
	}

	for folder := range folderLocations {
		if _, err := p.client.Select(folder, nil).Wait(); err != nil {
			return nil, fmt.Errorf("selecting %s: %w", folder, err)
		}

		criteria := &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{
				{Key: "Message-ID", Value: messageID},
			},
		}

		searchData, err := p.client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", folder, err)
		}

		uids := searchData.AllUIDs()
		if len(uids) == 0 {
			continue
		}

		messages, err := p.fetchUIDs(
			p.client, folder, imap.UIDSetNum(uids[len(uids)-1]),
		)
		if err != nil {
			return nil, err
		}
		if len(messages) > 0 {
			found := messages[0]
			return &found, nil
		}
	}

	return nil, nil
}

// SendReply submits a reply over SMTP and marks the original message
// as answered.
func (p *Provider) SendReply(
	_ context.Context, original model.EmailMessage, text, html string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return false, provider.ErrNotConnected
	}

	raw, err := composeReply(p.cfg.Username, original, text, html)
	if err != nil {
		return false, err
	}

	if err := p.submit(original.Sender, raw); err != nil {
		return false, fmt.Errorf("sending reply: %w", err)
	}

	// Best effort; the reply is already out.
	if ref, ok := p.uids[original.MessageID]; ok {
		_ = p.storeFlags(ref, []imap.Flag{imap.FlagAnswered})
	}

	return true, nil
}

// ArchiveMessage moves the message to the first archive folder the
// server accepts.
func (p *Provider) ArchiveMessage(
	_ context.Context, msg model.EmailMessage,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return false, provider.ErrNotConnected
	}

	ref, ok := p.uids[msg.MessageID]
	if !ok {
		return false, nil
	}

	if _, err := p.client.Select(ref.folder, nil).Wait(); err != nil {
		return false, fmt.Errorf("selecting %s: %w", ref.folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(ref.uid))
	for _, folder := range archiveFolders {
		if _, err := p.client.Move(uidSet, folder).Wait(); err == nil {
			delete(p.uids, msg.MessageID)
			return true, nil
		}
	}

	// Fallback: mark as deleted.
	if err := p.storeFlags(ref, []imap.Flag{imap.FlagDeleted}); err != nil {
		return false, fmt.Errorf("archiving %s: %w", msg.MessageID, err)
	}

	delete(p.uids, msg.MessageID)
	return true, nil
}

// ApplyLabel attaches the label to the message as an IMAP keyword.
func (p *Provider) ApplyLabel(
	_ context.Context, msg model.EmailMessage, label string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return false, provider.ErrNotConnected
	}

	ref, ok := p.uids[msg.MessageID]
	if !ok {
		return false, nil
	}

	if err := p.storeFlags(ref, []imap.Flag{imap.Flag(label)}); err != nil {
		return false, fmt.Errorf(
			"applying label %q to %s: %w", label, msg.MessageID, err,
		)
	}

	return true, nil
}

// SendEmail submits a standalone email over SMTP.
func (p *Provider) SendEmail(
	_ context.Context, to, subject, text, html string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return false, provider.ErrNotConnected
	}

	raw, err := composeEmail(p.cfg.Username, to, subject, text, html)
	if err != nil {
		return false, err
	}

	if err := p.submit(to, raw); err != nil {
		return false, fmt.Errorf("sending email to %s: %w", to, err)
	}

	return true, nil
}

// rememberUID records where a fetched message lives on the server.
func (p *Provider) rememberUID(messageID, folder string, uid uint32) {
	p.uids[messageID] = uidRef{folder: folder, uid: uid}
}

// storeFlags adds flags to the referenced message, selecting its
// folder first.
func (p *Provider) storeFlags(ref uidRef, flags []imap.Flag) error {
	if _, err := p.client.Select(ref.folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", ref.folder, err)
	}

	storeCmd := p.client.Store(
		imap.UIDSetNum(imap.UID(ref.uid)),
		&imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  flags,
		},
		nil,
	)
	return storeCmd.Close()
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
