package mimetree

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// ErrNotMultipart is returned by Parse when the top-level content of a
// message is not a multipart container.
var ErrNotMultipart = errors.New("message content is not multipart")

const maxDepth = 32

// Entity is a node of a parsed message. Leaves keep their body exactly as it
// was on the wire; containers keep their children. Entities are not
// modified after parsing: Replace builds a new tree.
type Entity struct {
	Header    message.Header
	Body      []byte
	Children  []*Entity
	container bool
}

// Parse reads a raw RFC 822 message. Nested multipart children are parsed
// recursively, everything else is a leaf.
func Parse(raw []byte) (*Entity, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	root, err := parseEntity(message.Header{Header: h}, body, 0)
	if err != nil {
		return nil, err
	}
	if !root.container {
		return nil, fmt.Errorf("%w: top-level type is %s", ErrNotMultipart, root.MediaType())
	}
	return root, nil
}

func parseEntity(h message.Header, body []byte, depth int) (*Entity, error) {
	e := &Entity{Header: h}
	mediaType, params, err := h.ContentType()
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		e.Body = body
		return e, nil
	}
	if depth >= maxDepth {
		return nil, fmt.Errorf("multipart nesting deeper than %d levels", maxDepth)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("%s container without boundary", mediaType)
	}

	e.container = true
	mr := textproto.NewMultipartReader(bytes.NewReader(body), boundary)
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s part %d: %w", mediaType, len(e.Children)+1, err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s part %d: %w", mediaType, len(e.Children)+1, err)
		}
		child, err := parseEntity(message.Header{Header: p.Header}, data, depth+1)
		if err != nil {
			return nil, err
		}
		e.Children = append(e.Children, child)
	}
	return e, nil
}

// IsContainer reports whether e is a multipart node.
func (e *Entity) IsContainer() bool {
	return e.container
}

// MediaType returns the lower-case media type, text/plain when absent.
func (e *Entity) MediaType() string {
	raw := e.Header.Get("Content-Type")
	if strings.TrimSpace(raw) == "" {
		return "text/plain"
	}
	mediaType, _, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType, _, _ = strings.Cut(raw, ";")
		return strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mediaType
}

// Subtype returns the container subtype, such as "mixed" or "related".
func (e *Entity) Subtype() string {
	_, subtype, _ := strings.Cut(e.MediaType(), "/")
	return subtype
}

// Filename returns the decoded attachment file name from the
// Content-Disposition filename parameter or, failing that, the Content-Type
// name parameter. It is empty for parts that are not attachments.
func (e *Entity) Filename() string {
	if e.container {
		return ""
	}
	name, _ := (&mail.AttachmentHeader{Header: e.Header}).Filename()
	return name
}

// Content returns the leaf payload with its transfer encoding removed. No
// charset conversion is applied. Unknown transfer encodings yield the raw
// body.
func (e *Entity) Content() (io.Reader, error) {
	if e.container {
		return nil, fmt.Errorf("%s container has no content of its own", e.MediaType())
	}
	h := message.Header{Header: e.Header.Header.Copy()}
	h.SetContentType("application/octet-stream", nil)
	decoded, err := message.New(h, bytes.NewReader(e.Body))
	if err != nil {
		if message.IsUnknownEncoding(err) {
			return bytes.NewReader(e.Body), nil
		}
		return nil, fmt.Errorf("failed to decode %s part: %w", e.MediaType(), err)
	}
	return decoded.Body, nil
}

// Leaves returns the leaf parts in document order.
func (e *Entity) Leaves() []*Entity {
	if !e.container {
		return []*Entity{e}
	}
	var out []*Entity
	for _, c := range e.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// Subject returns the decoded Subject header.
func (e *Entity) Subject() string {
	h := mail.Header{Header: e.Header}
	subject, err := h.Subject()
	if err != nil {
		return h.Get("Subject")
	}
	return subject
}

// Date returns the parsed Date header.
func (e *Entity) Date() (time.Time, error) {
	h := mail.Header{Header: e.Header}
	return h.Date()
}

// MessageID returns the raw Message-ID header including angle brackets.
func (e *Entity) MessageID() string {
	return strings.TrimSpace(e.Header.Get("Message-Id"))
}

// WithMessageID returns a shallow copy of e carrying a new Message-ID.
func (e *Entity) WithMessageID(id string) *Entity {
	out := *e
	out.Header = message.Header{Header: e.Header.Header.Copy()}
	out.Header.Set("Message-Id", id)
	return &out
}

// Bytes serializes the tree. Containers get fresh boundaries; leaves are
// written byte for byte.
func (e *Entity) Bytes() ([]byte, error) {
	h, body, err := e.render()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, h); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

func (e *Entity) render() (textproto.Header, []byte, error) {
	if !e.container {
		return e.Header.Header, e.Body, nil
	}

	var buf bytes.Buffer
	mw := textproto.NewMultipartWriter(&buf)
	for _, c := range e.Children {
		ch, cb, err := c.render()
		if err != nil {
			return textproto.Header{}, nil, err
		}
		pw, err := mw.CreatePart(ch)
		if err != nil {
			return textproto.Header{}, nil, fmt.Errorf("failed to write part header: %w", err)
		}
		if _, err := pw.Write(cb); err != nil {
			return textproto.Header{}, nil, fmt.Errorf("failed to write part body: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return textproto.Header{}, nil, fmt.Errorf("failed to close multipart: %w", err)
	}

	_, params, _ := e.Header.ContentType()
	newParams := make(map[string]string, len(params)+1)
	for k, v := range params {
		newParams[k] = v
	}
	newParams["boundary"] = mw.Boundary()

	h := message.Header{Header: e.Header.Header.Copy()}
	h.Set("Content-Type", mime.FormatMediaType("multipart/"+e.Subtype(), newParams))
	return h.Header, buf.Bytes(), nil
}
