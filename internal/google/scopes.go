package google

import (
	gmail "google.golang.org/api/gmail/v1"
)

// DefaultScopes are the Gmail scopes needed to search the mailbox and send
// unsubscribe emails.
var DefaultScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
}
