package extractor

import (
	"context"
	"time"
)

// MessageRef identifies a message in the mailbox.
type MessageRef struct {
	ID       string
	ThreadID string
}

// MessagePage is one page of a message search.
type MessagePage struct {
	Messages           []MessageRef
	NextPageToken      string
	ResultSizeEstimate int64
}

// PartMeta is the metadata the mailbox reports for one leaf part, before
// the message content is fetched. Size is the decoded payload size.
type PartMeta struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// MessageMeta is the metadata of a message with its leaf parts in document
// order. SinglePart is set when the top-level content is not a multipart
// container; such a message has nothing that can be extracted.
type MessageMeta struct {
	ID           string
	ThreadID     string
	Subject      string
	MessageID    string
	LabelIDs     []string
	InternalDate time.Time
	SinglePart   bool
	Parts        []PartMeta
}

// RawMessage is the RFC 822 content of a message.
type RawMessage struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	InternalDate time.Time
	Raw          []byte
}

// Label is a mailbox label.
type Label struct {
	ID   string
	Name string
}

// Source reads messages and labels.
type Source interface {
	ListMessages(ctx context.Context, query, pageToken string) (MessagePage, error)
	GetMessage(ctx context.Context, id string) (MessageMeta, error)
	GetRawMessage(ctx context.Context, id string) (RawMessage, error)
	ListLabels(ctx context.Context) ([]Label, error)
}

// Sink applies mutations to the mailbox.
type Sink interface {
	CreateLabel(ctx context.Context, name string) (Label, error)
	AddLabel(ctx context.Context, messageID, labelID string) error
	InsertMessage(ctx context.Context, raw []byte, labelIDs []string, threadID string) (MessageRef, error)
}

// Mailbox is both a Source and a Sink.
type Mailbox interface {
	Source
	Sink
}
