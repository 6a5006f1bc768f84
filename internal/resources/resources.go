package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/attachextract/internal/server"
)

// Resource URIs.
const (
	LastRunURI  = "attachextract://runs/last"
	SettingsURI = "attachextract://settings"
	ProfileURI  = "attachextract://account/profile"
)

// profiler is implemented by mailboxes that know their address.
type profiler interface {
	EmailAddress(ctx context.Context) (string, error)
}

// RegisterRunResources registers the resources describing the server
// configuration, the configured account and the latest extraction run.
func RegisterRunResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	lastRunResource := mcp.NewResource(
		LastRunURI,
		"Last Extraction Run",
		mcp.WithResourceDescription("Statistics and failures of the latest extract_attachments call"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(lastRunResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleLastRun(ctx, request, sc)
	})

	settingsResource := mcp.NewResource(
		SettingsURI,
		"Extraction Settings",
		mcp.WithResourceDescription("Default settings applied to every tool call"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(settingsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSettings(ctx, request, sc)
	})

	profileResource := mcp.NewResource(
		ProfileURI,
		"Account Profile",
		mcp.WithResourceDescription("Email address of the configured Google account"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleProfile(ctx, request, sc)
	})

	return nil
}

func handleLastRun(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	data := map[string]any{
		"runInProgress": sc.RunInProgress(),
	}

	if rec := sc.LastRun(); rec != nil {
		run := map[string]any{
			"account":  rec.Account,
			"started":  rec.Started.Format(time.RFC3339),
			"finished": rec.Finished.Format(time.RFC3339),
			"duration": rec.Finished.Sub(rec.Started).String(),
		}
		if rec.Err != nil {
			run["error"] = rec.Err.Error()
		}
		if st := rec.Stats; st != nil {
			failures := make([]string, 0, len(st.Failures))
			for _, f := range st.Failures {
				failures = append(failures, f.Error())
			}
			run["query"] = st.Query
			run["dryRun"] = st.DryRun
			run["processed"] = st.Processed
			run["extracted"] = st.Extracted
			run["attachments"] = st.Attachments
			run["bytes"] = st.Bytes
			run["extractedTypes"] = st.ExtractedTypes
			run["filteredTypes"] = st.FilteredTypes
			run["failures"] = failures
		}
		data["lastRun"] = run
	}

	return jsonContents(request, data)
}

func handleSettings(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	cfg := sc.Config()
	data := map[string]any{
		"account":          cfg.Account,
		"outputDir":        cfg.OutputDir,
		"labelsPrefix":     cfg.LabelsPrefix,
		"failLate":         cfg.FailLate,
		"interMessageWait": cfg.InterMessageWait.String(),
		"filter": map[string]string{
			"filename": cfg.Filter.Filename,
			"mimeType": cfg.Filter.MimeType,
			"minSize":  cfg.Filter.MinSize,
			"maxSize":  cfg.Filter.MaxSize,
		},
	}
	return jsonContents(request, data)
}

func handleProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := sc.Config().Account

	mailbox, err := sc.MailboxForAccount(account)
	if err != nil {
		return nil, fmt.Errorf("no mailbox available for account %s: %w", account, err)
	}
	p, ok := mailbox.(profiler)
	if !ok {
		return nil, fmt.Errorf("mailbox of account %s has no profile", account)
	}
	email, err := p.EmailAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account profile: %w", err)
	}

	return jsonContents(request, map[string]any{
		"account": account,
		"email":   email,
	})
}

func jsonContents(request mcp.ReadResourceRequest, data any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
