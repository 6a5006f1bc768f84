package resources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/attachextract/internal/config"
	"github.com/teemow/attachextract/internal/extractor"
	"github.com/teemow/attachextract/internal/server"
)

type profileMailbox struct {
	extractor.Mailbox
	email string
}

func (m *profileMailbox) EmailAddress(context.Context) (string, error) {
	if m.email == "" {
		return "", errors.New("unauthorized")
	}
	return m.email, nil
}

func newServerContext(t *testing.T, mb extractor.Mailbox) *server.ServerContext {
	t.Helper()
	cfg := config.Default()
	cfg.Account = "work"
	cfg.Filter.MimeType = "image/"
	sc := server.NewServerContext(context.Background(), cfg, nil,
		server.WithMailboxFactory(func(context.Context, string) (extractor.Mailbox, error) {
			return mb, nil
		}))
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func read(t *testing.T, handler func(context.Context, mcp.ReadResourceRequest, *server.ServerContext) ([]mcp.ResourceContents, error), sc *server.ServerContext, uri string) map[string]any {
	t.Helper()
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri

	contents, err := handler(context.Background(), req, sc)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, uri, text.URI)
	assert.Equal(t, "application/json", text.MIMEType)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &data))
	return data
}

func TestRegisterRunResources(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithResourceCapabilities(false, false))
	require.NoError(t, RegisterRunResources(s, newServerContext(t, &profileMailbox{})))
}

func TestHandleLastRun(t *testing.T) {
	sc := newServerContext(t, &profileMailbox{})

	data := read(t, handleLastRun, sc, LastRunURI)
	assert.Equal(t, false, data["runInProgress"])
	assert.NotContains(t, data, "lastRun")

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	stats := &extractor.Stats{
		Query:          "has:attachment",
		DryRun:         true,
		Processed:      4,
		Extracted:      2,
		Attachments:    3,
		Bytes:          2048,
		ExtractedTypes: extractor.Multiset{"application/pdf": 3},
		FilteredTypes:  extractor.Multiset{},
		Failures:       []*extractor.MessageError{{MessageID: "m9", Err: errors.New("boom")}},
	}
	sc.RecordRun(server.RunRecord{
		Account:  "work",
		Started:  started,
		Finished: started.Add(90 * time.Second),
		Stats:    stats,
		Err:      &extractor.RunError{Failures: stats.Failures},
	})

	data = read(t, handleLastRun, sc, LastRunURI)
	run, ok := data["lastRun"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "work", run["account"])
	assert.Equal(t, "2024-03-01T10:00:00Z", run["started"])
	assert.Equal(t, "1m30s", run["duration"])
	assert.Equal(t, true, run["dryRun"])
	assert.Equal(t, float64(4), run["processed"])
	assert.Equal(t, float64(3), run["attachments"])
	assert.Equal(t, map[string]any{"application/pdf": float64(3)}, run["extractedTypes"])
	assert.Equal(t, []any{"message m9: boom"}, run["failures"])
	assert.NotEmpty(t, run["error"])
}

func TestHandleSettings(t *testing.T) {
	data := read(t, handleSettings, newServerContext(t, &profileMailbox{}), SettingsURI)
	assert.Equal(t, "work", data["account"])
	assert.Equal(t, extractor.DefaultLabelsPrefix, data["labelsPrefix"])
	assert.Equal(t, "0s", data["interMessageWait"])
	assert.Equal(t, "image/", data["filter"].(map[string]any)["mimeType"])
}

func TestHandleProfile(t *testing.T) {
	data := read(t, handleProfile, newServerContext(t, &profileMailbox{email: "me@example.com"}), ProfileURI)
	assert.Equal(t, map[string]any{"account": "work", "email": "me@example.com"}, data)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = ProfileURI
	_, err := handleProfile(context.Background(), req, newServerContext(t, &profileMailbox{}))
	assert.ErrorContains(t, err, "unauthorized")
}
