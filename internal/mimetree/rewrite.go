package mimetree

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"

	"github.com/teemow/attachextract/internal/descriptor"
)

// Replace returns a new tree shaped like root whose i-th leaf is leaves[i].
// Containers keep their subtype and parameters. root is not modified.
func Replace(root *Entity, leaves []*Entity) (*Entity, error) {
	next := 0
	out, err := rebuild(root, leaves, &next)
	if err != nil {
		return nil, err
	}
	if next != len(leaves) {
		return nil, fmt.Errorf("replacement has %d leaves, message has %d", len(leaves), next)
	}
	return out, nil
}

func rebuild(e *Entity, leaves []*Entity, next *int) (*Entity, error) {
	if !e.container {
		if *next >= len(leaves) {
			return nil, fmt.Errorf("replacement has %d leaves, message has more", len(leaves))
		}
		leaf := leaves[*next]
		*next++
		if leaf == nil {
			return nil, fmt.Errorf("replacement leaf %d is nil", *next)
		}
		return leaf, nil
	}

	children := make([]*Entity, 0, len(e.Children))
	for _, c := range e.Children {
		nc, err := rebuild(c, leaves, next)
		if err != nil {
			return nil, err
		}
		children = append(children, nc)
	}
	return &Entity{
		Header:    message.Header{Header: e.Header.Header.Copy()},
		Children:  children,
		container: true,
	}, nil
}

// NewDescriptorLeaf builds the part that stands in for original once its
// payload has been extracted. Headers other than the content headers are
// carried over; the disposition type is kept with the new file name.
func NewDescriptorLeaf(original *Entity, filename, text string) (*Entity, error) {
	if original.container {
		return nil, fmt.Errorf("cannot replace a %s container with a descriptor", original.MediaType())
	}

	h := message.Header{Header: original.Header.Header.Copy()}
	hadVersion := h.Has("Mime-Version")

	disposition, _, err := original.Header.ContentDisposition()
	if err != nil || disposition == "" {
		disposition = "attachment"
	}
	h.SetContentDisposition(disposition, map[string]string{"filename": filename})

	charset := descriptor.Charset(text)
	h.SetContentType("text/plain", map[string]string{"charset": charset, "name": filename})
	encoding := "7bit"
	if charset != descriptor.CharsetASCII {
		encoding = "quoted-printable"
	}
	h.Set("Content-Transfer-Encoding", encoding)

	var buf bytes.Buffer
	w, err := message.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor part: %w", err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, fmt.Errorf("failed to write descriptor part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close descriptor part: %w", err)
	}

	br := bufio.NewReader(&buf)
	written, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read back descriptor header: %w", err)
	}
	if !hadVersion {
		written.Del("Mime-Version")
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read back descriptor body: %w", err)
	}
	return &Entity{Header: message.Header{Header: written}, Body: body}, nil
}
