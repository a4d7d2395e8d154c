package model

import "time"

// EmailMessage is the value type the core operates on. Instances are
// produced by a mailbox provider and are read-only to the core.
type EmailMessage struct {
	MessageID  string
	ThreadID   string
	Sender     string
	Recipients []string
	Subject    string
	BodyText   string
	BodyHTML   string

	// Date is the delivery time reported by the provider. Zero when
	// the provider could not determine one.
	Date time.Time

	// Location is the provider's folder/tag for the message
	// (e.g. "INBOX", "SPAM"). Empty when untagged.
	Location string

	// Labels are provider labels already on the message.
	Labels []string
}
