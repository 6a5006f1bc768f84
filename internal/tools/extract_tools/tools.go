package extract_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/attachextract/internal/config"
	"github.com/teemow/attachextract/internal/extractor"
	"github.com/teemow/attachextract/internal/server"
	"github.com/teemow/attachextract/internal/tools/common"
)

// DefaultPreviewLimit bounds the messages scanned by preview_attachments.
const DefaultPreviewLimit = 200

// RegisterExtractTools registers the extraction and account tools with the
// MCP server. Unless yolo is set, extract_attachments always runs in dry-run
// mode.
func RegisterExtractTools(s *mcpserver.MCPServer, sc *server.ServerContext, yolo bool) error {
	filterOptions := []mcp.ToolOption{
		mcp.WithString("account",
			mcp.Description("Account name (default: configured account). Used to manage multiple Google accounts."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query, e.g. 'has:attachment larger:5M older_than:1y'. Boolean operators must be upper case (OR, AND, AROUND)."),
		),
		mcp.WithString("filename",
			mcp.Description("Regular expression the whole attachment file name must match"),
		),
		mcp.WithString("mime_type",
			mcp.Description("Regular expression matched against the start of the attachment MIME type, e.g. 'image/'"),
		),
		mcp.WithString("min_size",
			mcp.Description("Minimum attachment size, e.g. '500k'"),
		),
		mcp.WithString("max_size",
			mcp.Description("Maximum attachment size, e.g. '20M'"),
		),
	}

	previewTool := mcp.NewTool("preview_attachments", append([]mcp.ToolOption{
		mcp.WithDescription("List the attachments an extraction run would take from the matching messages. Reads message metadata only."),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of messages to scan (default: %d)", DefaultPreviewLimit)),
		),
	}, filterOptions...)...)

	s.AddTool(previewTool, common.InstrumentedToolHandler("preview_attachments", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handlePreview(ctx, request, sc)
		}))

	extractDescription := "Save the matching attachments below the output directory, insert copies of the messages with the attachments replaced by descriptors and label the originals."
	if !yolo {
		extractDescription += " The server runs in safe mode: the mailbox is never modified and the run is a dry run."
	}
	extractTool := mcp.NewTool("extract_attachments", append([]mcp.ToolOption{
		mcp.WithDescription(extractDescription),
		mcp.WithString("output_dir",
			mcp.Description("Directory to create for the attachments; must not exist"),
		),
		mcp.WithString("labels_prefix",
			mcp.Description("Prefix of the '[pre]' and '[post]' labels; both must not exist"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Extract and validate without modifying the mailbox (default: true)"),
		),
		mcp.WithBoolean("fail_late",
			mcp.Description("Continue after a failing message and report all failures at the end"),
		),
	}, filterOptions...)...)

	s.AddTool(extractTool, common.InstrumentedToolHandler("extract_attachments", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleExtract(ctx, request, sc, yolo)
		}))

	registerAccountTools(s, sc)

	return nil
}

// runConfig overlays the request arguments on the server configuration.
func runConfig(args map[string]any, sc *server.ServerContext) (*config.Config, error) {
	cfg := sc.Config()
	cfg.Account = common.GetAccountFromArgs(args, cfg.Account)
	cfg.Query = common.GetString(args, "query")

	overrides := map[string]*string{
		"filename":      &cfg.Filter.Filename,
		"mime_type":     &cfg.Filter.MimeType,
		"min_size":      &cfg.Filter.MinSize,
		"max_size":      &cfg.Filter.MaxSize,
		"output_dir":    &cfg.OutputDir,
		"labels_prefix": &cfg.LabelsPrefix,
	}
	for name, dst := range overrides {
		if v := common.GetString(args, name); v != "" {
			*dst = v
		}
	}
	cfg.FailLate = common.GetBool(args, "fail_late", cfg.FailLate)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newExtractor(cfg *config.Config, sc *server.ServerContext) (*extractor.Extractor, error) {
	opts, err := cfg.ExtractorOptions()
	if err != nil {
		return nil, err
	}
	mailbox, err := sc.MailboxForAccount(cfg.Account)
	if err != nil {
		return nil, err
	}
	return extractor.New(mailbox, mailbox, opts,
		extractor.WithLogger(sc.Logger()),
		extractor.WithMetrics(sc.Metrics()),
		extractor.WithAuditLogger(sc.AuditLogger()),
	)
}

func handlePreview(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	cfg, err := runConfig(args, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := common.GetInt(args, "limit", DefaultPreviewLimit)

	ext, err := newExtractor(cfg, sc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to prepare preview: %v", err)), nil
	}
	report, err := ext.Preview(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to preview attachments: %v", err)), nil
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode preview: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleExtract(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, yolo bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	cfg, err := runConfig(args, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg.DryRun = !yolo || common.GetBool(args, "dry_run", true)

	release, err := sc.BeginRun()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer release()

	ext, err := newExtractor(cfg, sc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to prepare extraction: %v", err)), nil
	}

	started := time.Now()
	stats, runErr := ext.Run(ctx)
	sc.RecordRun(server.RunRecord{
		Account:  cfg.Account,
		Started:  started,
		Finished: time.Now(),
		Stats:    stats,
		Err:      runErr,
	})

	var b strings.Builder
	if stats != nil {
		b.WriteString(stats.Summary())
	}
	if runErr == nil {
		return mcp.NewToolResultText(b.String()), nil
	}

	var failures *extractor.RunError
	if !errors.As(runErr, &failures) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Extraction aborted: %v", runErr)
	}
	return mcp.NewToolResultError(b.String()), nil
}
