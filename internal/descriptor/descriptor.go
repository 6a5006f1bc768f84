package descriptor

import (
	"strconv"
	"strings"
	"time"
)

// TimeLayout formats the deletion and receipt timestamps.
const TimeLayout = "2006.01.02 15:04:05 -07:00"

// Charsets of the replacement part.
const (
	CharsetASCII = "us-ascii"
	CharsetUTF8  = "utf-8"
)

const newline = "\r\n"

// Descriptor records what was removed from a message.
type Descriptor struct {
	DeletedAt time.Time

	// MessageID is the Message-ID of the original message, CopyMessageID the
	// one of the rewritten copy carrying this descriptor. Either may be empty.
	MessageID     string
	CopyMessageID string
	Subject       string
	ReceivedAt    time.Time

	Filename string
	SavedAs  string
	Size     int64
	SHA1     string
	MD5      string
}

// Build renders the descriptor of an attachment deleted now.
func Build(filename, messageID, subject string, receivedAt time.Time, size int64, sha1, md5 string) string {
	return Descriptor{
		DeletedAt:  time.Now(),
		MessageID:  messageID,
		Subject:    subject,
		ReceivedAt: receivedAt,
		Filename:   filename,
		Size:       size,
		SHA1:       sha1,
		MD5:        md5,
	}.Text()
}

// Text renders the descriptor as YAML with CRLF line endings. Free-text
// values are double-quoted with control characters escaped, so every value
// stays on its own line.
func (d Descriptor) Text() string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString(newline)
	}

	line("#")
	line("# The attachment has been deleted from this email message.")
	line("#")
	line("Date deleted: " + d.DeletedAt.Format(TimeLayout))
	line("Email:")
	line("    ID: " + quote(d.MessageID))
	if d.CopyMessageID != "" {
		line("    Copy ID: " + quote(d.CopyMessageID))
	}
	line("    Subject: " + quote(d.Subject))
	if !d.ReceivedAt.IsZero() {
		line("    Date received: " + d.ReceivedAt.Format(TimeLayout))
	}
	line("Attachment file:")
	line("    Name: " + quote(d.Filename))
	if d.SavedAs != "" {
		line("    Saved as: " + quote(d.SavedAs))
	}
	line("    Size in bytes: " + strconv.FormatInt(d.Size, 10))
	line("    SHA1: " + d.SHA1)
	line("    MD5:  " + d.MD5)
	return b.String()
}

// quote produces a YAML double-quoted scalar. The escapes emitted by
// strconv.Quote are a subset of the YAML ones.
func quote(s string) string {
	return strconv.Quote(s)
}

// Charset returns the narrowest charset able to carry text verbatim.
func Charset(text string) string {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\r' || c == '\n' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return CharsetUTF8
		}
	}
	return CharsetASCII
}

// FileName is the attachment name of the replacement part.
func FileName(original string) string {
	return "Deleted " + original + ".yml"
}
