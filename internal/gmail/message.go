package gmail

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/attachextract/internal/extractor"
)

// messageMeta converts a message fetched in the "full" format.
func messageMeta(m *gmail.Message) extractor.MessageMeta {
	meta := extractor.MessageMeta{
		ID:           m.Id,
		ThreadID:     m.ThreadId,
		Subject:      HeaderValue(m, "Subject"),
		MessageID:    HeaderValue(m, "Message-ID"),
		LabelIDs:     m.LabelIds,
		InternalDate: internalDate(m.InternalDate),
		SinglePart:   m.Payload != nil && !isContainer(m.Payload.MimeType),
	}
	walkLeaves(m.Payload, func(part *gmail.MessagePart) {
		pm := extractor.PartMeta{Filename: part.Filename, MimeType: part.MimeType}
		if part.Body != nil {
			pm.Size = part.Body.Size
		}
		meta.Parts = append(meta.Parts, pm)
	})
	return meta
}

// walkLeaves calls fn for every leaf part in document order. Only
// multipart containers are descended into, so an attached message/rfc822
// is reported as one leaf, the way the MIME parser sees it.
func walkLeaves(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	if !isContainer(part.MimeType) {
		fn(part)
		return
	}
	for _, subpart := range part.Parts {
		walkLeaves(subpart, fn)
	}
}

func isContainer(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "multipart/")
}

// HeaderValue extracts a top-level header value from a Gmail message. Header
// names are compared case-insensitively.
func HeaderValue(m *gmail.Message, header string) string {
	mpart := m.Payload
	if mpart == nil {
		return ""
	}
	for _, mph := range mpart.Headers {
		if strings.EqualFold(mph.Name, header) {
			return mph.Value
		}
	}
	return ""
}

// decodeRaw decodes the base64url "raw" field. Gmail sends it padded, but
// unpadded and standard alphabet payloads are accepted as well.
func decodeRaw(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty raw content")
	}
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// internalDate converts Gmail's epoch milliseconds.
func internalDate(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
