package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/listunsub/internal/instrumentation"
	"github.com/teemow/listunsub/internal/mailbox"
)

// userID addresses the authenticated account.
const userID = "me"

// Client wraps the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	metrics *instrumentation.Metrics
}

var _ mailbox.Provider = (*Client)(nil)

// NewClient creates a Gmail client. opts must carry the authorization,
// usually option.WithHTTPClient with an OAuth2 client.
func NewClient(ctx context.Context, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Client{
		svc:     svc.Users,
		metrics: metrics,
	}, nil
}

// EmailAddress returns the address of the authenticated account.
func (c *Client) EmailAddress(ctx context.Context) (string, error) {
	ctx, span, start := c.begin(ctx, instrumentation.OperationProfile)
	defer span.End()

	profile, err := c.svc.GetProfile(userID).Context(ctx).Do()
	c.finish(ctx, span, instrumentation.OperationProfile, start, err)
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// ListPage returns one page of message identifiers matching query.
func (c *Client) ListPage(ctx context.Context, query, pageToken string) (*mailbox.Page, error) {
	ctx, span, start := c.begin(ctx, instrumentation.OperationList)
	defer span.End()

	req := c.svc.Messages.List(userID).Q(query)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}
	res, err := req.Context(ctx).Do()
	c.finish(ctx, span, instrumentation.OperationList, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	page := &mailbox.Page{
		MessageIDs:    make([]string, 0, len(res.Messages)),
		NextPageToken: res.NextPageToken,
	}
	for _, m := range res.Messages {
		page.MessageIDs = append(page.MessageIDs, m.Id)
	}
	return page, nil
}

// GetMessage fetches a message in full format and returns its top-level headers.
func (c *Client) GetMessage(ctx context.Context, id string) (*mailbox.Message, error) {
	ctx, span, start := c.begin(ctx, instrumentation.OperationGet, attribute.String(instrumentation.SpanAttrMessageID, id))
	defer span.End()

	msg, err := c.svc.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	c.finish(ctx, span, instrumentation.OperationGet, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	out := &mailbox.Message{ID: msg.Id}
	if msg.Payload != nil {
		out.Headers = make([]mailbox.Header, 0, len(msg.Payload.Headers))
		for _, h := range msg.Payload.Headers {
			out.Headers = append(out.Headers, mailbox.Header{Name: h.Name, Value: h.Value})
		}
	}
	return out, nil
}

// SendRaw sends raw through the Gmail API. raw must be a complete RFC 5322 message.
func (c *Client) SendRaw(ctx context.Context, raw []byte) error {
	ctx, span, start := c.begin(ctx, instrumentation.OperationSend)
	defer span.End()

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}
	_, err := c.svc.Messages.Send(userID, msg).Context(ctx).Do()
	c.finish(ctx, span, instrumentation.OperationSend, start, err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (c *Client) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation, attrs...)
	return ctx, span, time.Now()
}

func (c *Client) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, time.Since(start))
}
