package unsubscribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/require"

	"github.com/teemow/listunsub/internal/mailbox"
)

// fakeProvider is an in-memory mailbox. Pages are keyed by the page token
// that requests them, "" being the first page.
type fakeProvider struct {
	mu       sync.Mutex
	pages    map[string]*mailbox.Page
	messages map[string]*mailbox.Message

	listErr error
	getErr  error
	sendErr error

	queries []string
	sent    [][]byte
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		pages:    map[string]*mailbox.Page{},
		messages: map[string]*mailbox.Message{},
	}
}

func (f *fakeProvider) addPage(token string, next string, msgs ...*mailbox.Message) {
	page := &mailbox.Page{NextPageToken: next}
	for _, m := range msgs {
		page.MessageIDs = append(page.MessageIDs, m.ID)
		f.messages[m.ID] = m
	}
	f.pages[token] = page
}

func (f *fakeProvider) ListPage(_ context.Context, query, pageToken string) (*mailbox.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.listErr != nil {
		return nil, f.listErr
	}
	page, ok := f.pages[pageToken]
	if !ok {
		return nil, fmt.Errorf("unknown page token %q", pageToken)
	}
	return page, nil
}

func (f *fakeProvider) GetMessage(_ context.Context, id string) (*mailbox.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, errors.New("message not found")
	}
	return msg, nil
}

func (f *fakeProvider) SendRaw(_ context.Context, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, raw)
	return nil
}

func message(id string, headers ...mailbox.Header) *mailbox.Message {
	return &mailbox.Message{ID: id, Headers: headers}
}

func unsubHeader(value string) mailbox.Header {
	return mailbox.Header{Name: "List-Unsubscribe", Value: value}
}

// sentMail is the decoded form of a message passed to SendRaw.
type sentMail struct {
	From    string
	To      string
	Subject string
	Body    string
}

func decodeSent(t *testing.T, raw []byte) sentMail {
	t.Helper()
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	var out sentMail
	out.To = mr.Header.Get("To")
	out.Subject, err = mr.Header.Subject()
	require.NoError(t, err)
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		out.From = from[0].Address
	}

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	out.Body = string(body)
	return out
}

func mailboxHeader(name, value string) mailbox.Header {
	return mailbox.Header{Name: name, Value: value}
}
