package imap

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"

	"github.com/nhle/stoppls/internal/model"
)

// folderLocations maps the IMAP folders the provider watches to the
// location tag exposed on fetched messages.
var folderLocations = map[string]string{
	"INBOX": "INBOX",
	"Junk":  "SPAM",
}

// dial connects and authenticates against the configured IMAP server.
func (p *Provider) dial() (*imapclient.Client, error) {
	addr := p.cfg.IMAPHost + ":" + p.cfg.IMAPPort

	var client *imapclient.Client
	var err error

	if p.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(p.cfg.Username, p.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf(
			"authentication failed for %s: %w", p.cfg.Username, err,
		)
	}

	return client, nil
}

// fetchFolder selects the folder and returns messages delivered after
// since, newest last. A zero since falls back to the last 7 days so a
// cold fetch does not pull the whole mailbox.
func (p *Provider) fetchFolder(
	client *imapclient.Client, folder string, since time.Time, limit int,
) ([]model.EmailMessage, error) {
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", folder, err)
	}

	if since.IsZero() {
		since = time.Now().AddDate(0, 0, -7)
	}

	criteria := &imap.SearchCriteria{Since: since}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", folder, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	return p.fetchUIDs(client, folder, imap.UIDSetNum(uids...))
}

// fetchUIDs fetches envelope and body data for the given UID set in
// the currently selected folder.
func (p *Provider) fetchUIDs(
	client *imapclient.Client, folder string, uidSet imap.UIDSet,
) ([]model.EmailMessage, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)

	var messages []model.EmailMessage
	for {
		raw := fetchCmd.Next()
		if raw == nil {
			break
		}

		buf, err := raw.Collect()
		if err != nil {
			continue
		}

		msg := p.messageFromBuffer(buf, folder, bodySection)
		messages = append(messages, msg)

		p.rememberUID(msg.MessageID, folder, uint32(buf.UID))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching from %s: %w", folder, err)
	}

	return messages, nil
}

// messageFromBuffer maps a fetched IMAP message onto the core's
// EmailMessage value type.
func (p *Provider) messageFromBuffer(
	buf *imapclient.FetchMessageBuffer,
	folder string,
	bodySection *imap.FetchItemBodySection,
) model.EmailMessage {
	msg := model.EmailMessage{
		Location: folderLocations[folder],
	}

	if buf.Envelope != nil {
		msg.MessageID = buf.Envelope.MessageID
		msg.Subject = buf.Envelope.Subject
		msg.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			msg.Sender = buf.Envelope.From[0].Addr()
		}
		for _, to := range buf.Envelope.To {
			msg.Recipients = append(msg.Recipients, to.Addr())
		}
	}
	if msg.MessageID == "" {
		msg.MessageID = fmt.Sprintf("%s-uid-%d", folder, buf.UID)
	}

	for _, flag := range buf.Flags {
		msg.Labels = append(msg.Labels, string(flag))
	}

	if rawBody := buf.FindBodySection(bodySection); rawBody != nil {
		msg.BodyText, msg.BodyHTML = parseMIMEBody(rawBody)
	}

	// An HTML-only message still needs body text for rule evaluation.
	if msg.BodyText == "" && msg.BodyHTML != "" {
		msg.BodyText = html2text.HTML2Text(msg.BodyHTML)
	}

	return msg
}

// parseMIMEBody parses a raw RFC 5322 message and extracts the
// text/plain and text/html bodies.
func parseMIMEBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// If parsing fails, treat the whole thing as plain text.
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
