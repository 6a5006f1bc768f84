package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

type testPart struct {
	filename string
	mimeType string
	content  []byte
}

func textBody(s string) testPart {
	return testPart{mimeType: "text/plain", content: []byte(s)}
}

func attachment(name, mimeType string, size int) testPart {
	content := make([]byte, size)
	for i := range content {
		content[i] = byte('a' + i%26)
	}
	return testPart{filename: name, mimeType: mimeType, content: content}
}

// buildRaw renders a multipart/mixed message with base64 attachments.
func buildRaw(messageID, subject string, parts ...testPart) []byte {
	var b bytes.Buffer
	w := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}
	w("From: sender@example.com")
	w("To: me@example.com")
	w("Subject: %s", subject)
	w("Date: Mon, 02 Jan 2006 15:04:05 +0000")
	if messageID != "" {
		w("Message-ID: %s", messageID)
	}
	w("MIME-Version: 1.0")
	w(`Content-Type: multipart/mixed; boundary="TESTBOUNDARY"`)
	w("")
	for _, p := range parts {
		w("--TESTBOUNDARY")
		if p.filename == "" {
			w("Content-Type: %s; charset=utf-8", p.mimeType)
			w("")
			w("%s", p.content)
			continue
		}
		w(`Content-Type: %s; name="%s"`, p.mimeType, p.filename)
		w(`Content-Disposition: attachment; filename="%s"`, p.filename)
		w("Content-Transfer-Encoding: base64")
		w("")
		enc := base64.StdEncoding.EncodeToString(p.content)
		for len(enc) > 76 {
			w("%s", enc[:76])
			enc = enc[76:]
		}
		w("%s", enc)
	}
	w("--TESTBOUNDARY--")
	return b.Bytes()
}

func singlePartRaw(subject string) []byte {
	return []byte("Subject: " + subject + "\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
		"Content-Type: text/plain\r\n\r\nHello\r\n")
}

type fakeMessage struct {
	meta MessageMeta
	raw  RawMessage
}

type insertCall struct {
	raw      []byte
	labelIDs []string
	threadID string
}

type addCall struct {
	messageID string
	labelID   string
}

// fakeMailbox is an in-memory Mailbox.
type fakeMailbox struct {
	pages    [][]string
	messages map[string]fakeMessage
	labels   []Label

	listCalls  int
	metaCalls  []string
	rawCalls   []string
	created    []Label
	inserted   []insertCall
	added      []addCall
	insertErr  error
	createErrs map[string]error
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		messages: map[string]fakeMessage{},
		labels:   []Label{{ID: "INBOX", Name: "INBOX"}},
	}
}

// add registers a message on the last page, opening the first page when
// there is none.
func (f *fakeMailbox) add(id string, meta []PartMeta, raw []byte) {
	if len(f.pages) == 0 {
		f.pages = append(f.pages, nil)
	}
	f.pages[len(f.pages)-1] = append(f.pages[len(f.pages)-1], id)
	thread := "thread-" + id
	f.messages[id] = fakeMessage{
		meta: MessageMeta{ID: id, ThreadID: thread, Subject: "subject " + id, LabelIDs: []string{"INBOX"}, Parts: meta},
		raw:  RawMessage{ID: id, ThreadID: thread, LabelIDs: []string{"INBOX"}, InternalDate: time.Unix(1136214245, 0), Raw: raw},
	}
}

// addSinglePart registers a message whose whole content is one part.
func (f *fakeMailbox) addSinglePart(id string, part testPart, raw []byte) {
	f.add(id, metaFor(part), raw)
	m := f.messages[id]
	m.meta.SinglePart = true
	f.messages[id] = m
}

func (f *fakeMailbox) newPage() {
	f.pages = append(f.pages, nil)
}

// metaFor derives part metadata from test parts as Gmail would report it.
func metaFor(parts ...testPart) []PartMeta {
	out := make([]PartMeta, len(parts))
	for i, p := range parts {
		out[i] = PartMeta{Filename: p.filename, MimeType: p.mimeType, Size: int64(len(p.content))}
	}
	return out
}

func (f *fakeMailbox) ListMessages(_ context.Context, _, pageToken string) (MessagePage, error) {
	f.listCalls++
	idx := 0
	if pageToken != "" {
		if _, err := fmt.Sscanf(pageToken, "page-%d", &idx); err != nil {
			return MessagePage{}, err
		}
	}
	if idx >= len(f.pages) {
		return MessagePage{}, nil
	}
	page := MessagePage{ResultSizeEstimate: int64(len(f.messages))}
	for _, id := range f.pages[idx] {
		page.Messages = append(page.Messages, MessageRef{ID: id, ThreadID: f.messages[id].meta.ThreadID})
	}
	if idx+1 < len(f.pages) {
		page.NextPageToken = fmt.Sprintf("page-%d", idx+1)
	}
	return page, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (MessageMeta, error) {
	f.metaCalls = append(f.metaCalls, id)
	m, ok := f.messages[id]
	if !ok {
		return MessageMeta{}, fmt.Errorf("message %s not found", id)
	}
	return m.meta, nil
}

func (f *fakeMailbox) GetRawMessage(_ context.Context, id string) (RawMessage, error) {
	f.rawCalls = append(f.rawCalls, id)
	m, ok := f.messages[id]
	if !ok {
		return RawMessage{}, fmt.Errorf("message %s not found", id)
	}
	return m.raw, nil
}

func (f *fakeMailbox) ListLabels(context.Context) ([]Label, error) {
	return append([]Label(nil), f.labels...), nil
}

func (f *fakeMailbox) CreateLabel(_ context.Context, name string) (Label, error) {
	if err := f.createErrs[name]; err != nil {
		return Label{}, err
	}
	l := Label{ID: fmt.Sprintf("Label_%d", len(f.created)+1), Name: name}
	f.created = append(f.created, l)
	f.labels = append(f.labels, l)
	return l, nil
}

func (f *fakeMailbox) AddLabel(_ context.Context, messageID, labelID string) error {
	f.added = append(f.added, addCall{messageID: messageID, labelID: labelID})
	return nil
}

func (f *fakeMailbox) InsertMessage(_ context.Context, raw []byte, labelIDs []string, threadID string) (MessageRef, error) {
	if f.insertErr != nil {
		return MessageRef{}, f.insertErr
	}
	f.inserted = append(f.inserted, insertCall{raw: raw, labelIDs: labelIDs, threadID: threadID})
	return MessageRef{ID: "copy-" + strings.TrimPrefix(threadID, "thread-"), ThreadID: threadID}, nil
}

func (f *fakeMailbox) labelID(name string) string {
	for _, l := range f.labels {
		if l.Name == name {
			return l.ID
		}
	}
	return ""
}
