package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/attachextract/internal/config"
	"github.com/teemow/attachextract/internal/extractor"
	"github.com/teemow/attachextract/internal/instrumentation"
)

// emptyMailbox matches no message. Calls other than listing panic through
// the nil embedded interface.
type emptyMailbox struct {
	extractor.Mailbox
	email   string
	queries []string
}

func (m *emptyMailbox) ListMessages(_ context.Context, query, _ string) (extractor.MessagePage, error) {
	m.queries = append(m.queries, query)
	return extractor.MessagePage{}, nil
}

func (m *emptyMailbox) EmailAddress(context.Context) (string, error) {
	if m.email == "" {
		return "", errors.New("token has been revoked")
	}
	return m.email, nil
}

func opener(mb *emptyMailbox, calls *int) mailboxOpener {
	return func(context.Context, *config.Config, *slog.Logger, *instrumentation.Metrics) (accountMailbox, error) {
		*calls++
		return mb, nil
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Query = "has:attachment"
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	return cfg
}

func TestRunExtract(t *testing.T) {
	mb := &emptyMailbox{}
	var calls int
	var out, logs bytes.Buffer

	cfg := testConfig(t)
	require.NoError(t, runExtract(context.Background(), cfg, opener(mb, &calls), &out, &logs))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"has:attachment"}, mb.queries)
	assert.Contains(t, out.String(), "=== SUMMARY ===")
	assert.Contains(t, out.String(), "Processed 0 email(s)")
	assert.Contains(t, logs.String(), "no messages matched query")
}

func TestRunExtract_Errors(t *testing.T) {
	t.Run("invalid configuration", func(t *testing.T) {
		var calls int
		var out, logs bytes.Buffer
		cfg := testConfig(t)
		cfg.Query = "a or b"
		cfg.Filter.MinSize = "huge"

		err := runExtract(context.Background(), cfg, opener(&emptyMailbox{}, &calls), &out, &logs)
		require.Error(t, err)
		assert.ErrorIs(t, err, extractor.ErrConfiguration)
		assert.Zero(t, calls)
		assert.Empty(t, out.String())
	})

	t.Run("output directory exists", func(t *testing.T) {
		var calls int
		var out, logs bytes.Buffer
		cfg := testConfig(t)
		require.NoError(t, os.Mkdir(cfg.OutputDir, 0o755))

		err := runExtract(context.Background(), cfg, opener(&emptyMailbox{}, &calls), &out, &logs)
		assert.ErrorIs(t, err, extractor.ErrPrecondition)
		assert.Contains(t, out.String(), "Processed 0 email(s)", "summary is printed on failure")
	})

	t.Run("mailbox cannot be opened", func(t *testing.T) {
		var out, logs bytes.Buffer
		failing := func(context.Context, *config.Config, *slog.Logger, *instrumentation.Metrics) (accountMailbox, error) {
			return nil, errors.New("no token for account")
		}

		err := runExtract(context.Background(), testConfig(t), failing, &out, &logs)
		assert.EqualError(t, err, "no token for account")
		assert.Empty(t, out.String())
	})
}

func TestRunCheckAuth(t *testing.T) {
	var calls int
	var out, logs bytes.Buffer
	cfg := testConfig(t)
	cfg.Query = ""

	err := runCheckAuth(context.Background(), cfg, opener(&emptyMailbox{email: "me@example.com"}, &calls), &out, &logs)
	require.NoError(t, err)
	assert.Equal(t, "Account \"default\" is authorized for me@example.com\n", out.String())
	assert.NotContains(t, logs.String(), "me@example.com")

	out.Reset()
	err = runCheckAuth(context.Background(), cfg, opener(&emptyMailbox{}, &calls), &out, &logs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token has been revoked")
	assert.Empty(t, out.String())
}

func TestExtractCmdFlags(t *testing.T) {
	cmd := newExtractCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-q", "larger:5M", "-o", "/tmp/x", "-n", "--only-check-auth"}))

	cfg, err := config.FromFlags(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "larger:5M", cfg.Query)
	assert.Equal(t, "/tmp/x", cfg.OutputDir)
	assert.True(t, cfg.DryRun)

	check, err := cmd.Flags().GetBool(flagOnlyCheckAuth)
	require.NoError(t, err)
	assert.True(t, check)
}

func TestServeCmdFlags(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--yolo", "--labels-prefix", "Agent"}))

	yolo, err := cmd.Flags().GetBool("yolo")
	require.NoError(t, err)
	assert.True(t, yolo)

	cfg, err := config.FromFlags(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "Agent", cfg.LabelsPrefix)
}

func TestVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "attachextract version "+version+"\n", out.String())
}

func TestGenerateDocs(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runGenerateDocs(&out))

	doc := out.String()
	assert.Contains(t, doc, "# MCP Tools Reference")
	assert.Contains(t, doc, "- [Attachment Tools](#attachment-tools)")
	assert.Contains(t, doc, "### extract_attachments")
	assert.Contains(t, doc, "### preview_attachments")
	assert.Contains(t, doc, "### check_accounts")
	assert.Contains(t, doc, "- `query` (required): ")
	assert.Contains(t, doc, "- `limit` (optional): ")
}

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		expected string
	}{
		{name: "extraction tool", toolName: "extract_attachments", expected: "Attachment Tools"},
		{name: "preview tool", toolName: "preview_attachments", expected: "Attachment Tools"},
		{name: "account tool", toolName: "check_accounts", expected: "Account Tools"},
		{name: "unknown suffix", toolName: "list_labels", expected: "Other"},
		{name: "no separator", toolName: "status", expected: "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getCategoryFromToolName(tt.toolName))
		})
	}
}
