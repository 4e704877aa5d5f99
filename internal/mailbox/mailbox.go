package mailbox

import (
	"context"
	"strings"
)

// Header is a single message header as returned by the provider.
type Header struct {
	Name  string
	Value string
}

// Message is a fetched message. Only the headers are needed to find an
// unsubscribe target.
type Message struct {
	ID      string
	Headers []Header
}

// HeaderValue returns the value of the first header whose name matches
// name case-insensitively, or "" when absent.
func (m *Message) HeaderValue(name string) string {
	if m == nil {
		return ""
	}
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Page is one page of a paginated search.
type Page struct {
	MessageIDs []string
	// NextPageToken is empty when there are no further pages.
	NextPageToken string
}

// Provider is the mailbox read/search and mail-send API.
type Provider interface {
	// ListPage returns the page of messages matching query that starts at
	// pageToken. An empty pageToken requests the first page.
	ListPage(ctx context.Context, query, pageToken string) (*Page, error)

	// GetMessage fetches the full message with the given identifier.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// SendRaw submits an already composed RFC 5322 message.
	SendRaw(ctx context.Context, raw []byte) error
}
