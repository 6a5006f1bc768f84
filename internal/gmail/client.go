package gmail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/attachextract/internal/extractor"
	"github.com/teemow/attachextract/internal/google"
	"github.com/teemow/attachextract/internal/instrumentation"
	"github.com/teemow/attachextract/internal/logging"
)

const (
	// user is the special Gmail user id of the authenticated account.
	user = "me"

	// PageSize is the number of message ids requested per list call,
	// the maximum Gmail allows.
	PageSize = 500
)

// Client wraps the Gmail Users service and implements extractor.Mailbox.
type Client struct {
	svc     *gmail.UsersService
	account string
	logger  logging.Logger
	metrics *instrumentation.Metrics
}

var _ extractor.Mailbox = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for API call debug lines.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records every API call.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithAccount names the account the client acts for.
func WithAccount(account string) Option {
	return func(c *Client) { c.account = account }
}

// NewClient creates a Gmail client from API client options such as
// option.WithHTTPClient or option.WithEndpoint.
func NewClient(ctx context.Context, apiOpts []option.ClientOption, opts ...Option) (*Client, error) {
	svc, err := gmail.NewService(ctx, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	c := &Client{
		svc:     svc.Users,
		account: google.DefaultAccount,
		logger:  logging.NewSlogAdapter(nil, "gmail"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientForAccount creates a Gmail client authorized with the stored
// token of an account.
func NewClientForAccount(ctx context.Context, store *google.TokenStore, account string, opts ...Option) (*Client, error) {
	httpClient, err := store.HTTPClientForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", google.GetAuthenticationErrorMessage(account), err)
	}
	return NewClient(ctx, []option.ClientOption{option.WithHTTPClient(httpClient)},
		append([]Option{WithAccount(account)}, opts...)...)
}

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// EmailAddress returns the address of the authenticated mailbox. It doubles
// as an authentication check.
func (c *Client) EmailAddress(ctx context.Context) (string, error) {
	var profile *gmail.Profile
	err := c.call(ctx, instrumentation.OperationGetProfile, func(ctx context.Context) (err error) {
		profile, err = c.svc.GetProfile(user).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// call runs one API request inside a client span and records its outcome.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := instrumentation.StartGmailSpan(ctx, operation, attrs...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Debug("gmail api call failed", logging.KeyOperation, operation, logging.KeyDuration, duration, logging.KeyError, err.Error())
	} else {
		instrumentation.SetSpanSuccess(span)
		c.logger.Debug("gmail api call", logging.KeyOperation, operation, logging.KeyDuration, duration)
	}
	c.metrics.RecordGmailAPICall(ctx, operation, status, duration)
	return err
}

// ListMessages returns one page of message ids matching the query.
func (c *Client) ListMessages(ctx context.Context, query, pageToken string) (extractor.MessagePage, error) {
	var res *gmail.ListMessagesResponse
	err := c.call(ctx, instrumentation.OperationListMessages, func(ctx context.Context) (err error) {
		req := c.svc.Messages.List(user).Q(query).MaxResults(PageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err = req.Do()
		return err
	})
	if err != nil {
		return extractor.MessagePage{}, fmt.Errorf("failed to list messages: %w", err)
	}

	page := extractor.MessagePage{
		NextPageToken:      res.NextPageToken,
		ResultSizeEstimate: res.ResultSizeEstimate,
	}
	for _, m := range res.Messages {
		page.Messages = append(page.Messages, extractor.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return page, nil
}

// GetMessage returns the metadata of a message with its leaf parts.
func (c *Client) GetMessage(ctx context.Context, id string) (extractor.MessageMeta, error) {
	var msg *gmail.Message
	err := c.call(ctx, instrumentation.OperationGetMessage, func(ctx context.Context) (err error) {
		msg, err = c.svc.Messages.Get(user, id).Format("full").Context(ctx).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrMessageID, id))
	if err != nil {
		return extractor.MessageMeta{}, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return messageMeta(msg), nil
}

// GetRawMessage returns the RFC 822 content of a message.
func (c *Client) GetRawMessage(ctx context.Context, id string) (extractor.RawMessage, error) {
	var msg *gmail.Message
	err := c.call(ctx, instrumentation.OperationGetRaw, func(ctx context.Context) (err error) {
		msg, err = c.svc.Messages.Get(user, id).Format("raw").Context(ctx).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrMessageID, id))
	if err != nil {
		return extractor.RawMessage{}, fmt.Errorf("failed to get raw message %s: %w", id, err)
	}

	raw, err := decodeRaw(msg.Raw)
	if err != nil {
		return extractor.RawMessage{}, fmt.Errorf("failed to decode raw message %s: %w", id, err)
	}
	return extractor.RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		LabelIDs:     msg.LabelIds,
		InternalDate: internalDate(msg.InternalDate),
		Raw:          raw,
	}, nil
}

// ListLabels returns all labels of the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]extractor.Label, error) {
	var res *gmail.ListLabelsResponse
	err := c.call(ctx, instrumentation.OperationListLabels, func(ctx context.Context) (err error) {
		res, err = c.svc.Labels.List(user).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	labels := make([]extractor.Label, 0, len(res.Labels))
	for _, l := range res.Labels {
		labels = append(labels, extractor.Label{ID: l.Id, Name: l.Name})
	}
	return labels, nil
}

// CreateLabel creates a user label visible in the label and message lists.
func (c *Client) CreateLabel(ctx context.Context, name string) (extractor.Label, error) {
	var created *gmail.Label
	err := c.call(ctx, instrumentation.OperationCreateLabel, func(ctx context.Context) (err error) {
		created, err = c.svc.Labels.Create(user, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return extractor.Label{}, fmt.Errorf("failed to create label %q: %w", name, err)
	}
	return extractor.Label{ID: created.Id, Name: created.Name}, nil
}

// AddLabel adds a label to a message.
func (c *Client) AddLabel(ctx context.Context, messageID, labelID string) error {
	err := c.call(ctx, instrumentation.OperationModify, func(ctx context.Context) error {
		_, err := c.svc.Messages.Modify(user, messageID, &gmail.ModifyMessageRequest{
			AddLabelIds: []string{labelID},
		}).Context(ctx).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrMessageID, messageID))
	if err != nil {
		return fmt.Errorf("failed to add label %s to message %s: %w", labelID, messageID, err)
	}
	return nil
}

// InsertMessage stores raw as a new message in the given thread, taking its
// internal date from the Date header.
func (c *Client) InsertMessage(ctx context.Context, raw []byte, labelIDs []string, threadID string) (extractor.MessageRef, error) {
	var inserted *gmail.Message
	err := c.call(ctx, instrumentation.OperationInsert, func(ctx context.Context) (err error) {
		inserted, err = c.svc.Messages.Insert(user, &gmail.Message{
			LabelIds: labelIDs,
			ThreadId: threadID,
		}).
			InternalDateSource("dateHeader").
			Media(bytes.NewReader(raw), googleapi.ContentType("message/rfc822")).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return extractor.MessageRef{}, fmt.Errorf("failed to insert message into thread %s: %w", threadID, err)
	}
	return extractor.MessageRef{ID: inserted.Id, ThreadID: inserted.ThreadId}, nil
}
