package extract_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/attachextract/internal/server"
	"github.com/teemow/attachextract/internal/tools/batch"
	"github.com/teemow/attachextract/internal/tools/common"
)

// profiler is implemented by mailboxes that know their address.
type profiler interface {
	EmailAddress(ctx context.Context) (string, error)
}

func registerAccountTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	checkTool := mcp.NewTool("check_accounts",
		mcp.WithDescription("Verify that the stored OAuth tokens of one or more accounts grant access to their mailboxes. Accounts without a token must be authorized with 'attachextract auth --account <name>'."),
		mcp.WithString("accounts",
			mcp.Required(),
			mcp.Description("Account name (string) or array of account names to check"),
		),
	)

	s.AddTool(checkTool, common.InstrumentedToolHandler("check_accounts", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckAccounts(ctx, request, sc)
		}))
}

func handleCheckAccounts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	accounts, err := batch.ParseStringOrArray(request.GetArguments()["accounts"], "accounts")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := batch.Process(ctx, accounts, func(ctx context.Context, account string) (string, error) {
		mailbox, err := sc.MailboxForAccount(account)
		if err != nil {
			return "", err
		}
		p, ok := mailbox.(profiler)
		if !ok {
			return "", fmt.Errorf("mailbox of account %s has no profile", account)
		}
		return p.EmailAddress(ctx)
	})

	out, err := batch.NewReport(results).JSON()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
