package mimetree

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxLocalPartLength = 100
	fallbackIDDomain   = "attachextract.invalid"
)

// NextMessageID derives the Message-ID of a rewritten copy from the ID of
// the original. The local part of the original is kept as a prefix and a
// random, time and sequence component is appended; the domain is kept. The
// local part is cut from the left to at most 100 characters.
func NextMessageID(prev string, seq int, now time.Time) string {
	id := strings.TrimSpace(prev)
	id = strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")

	local, domain := "", fallbackIDDomain
	if at := strings.LastIndexByte(id, '@'); at > 0 && at < len(id)-1 {
		local, domain = id[:at], id[at+1:]
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12] +
		"." + strconv.FormatInt(now.UnixMilli(), 36) +
		"." + strconv.Itoa(seq)
	next := suffix
	if local != "" {
		next = local + "." + suffix
	}
	if len(next) > maxLocalPartLength {
		next = strings.TrimLeft(next[len(next)-maxLocalPartLength:], ".")
	}
	return "<" + next + "@" + domain + ">"
}
