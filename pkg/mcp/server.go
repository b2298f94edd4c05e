package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/aivault/internal/executor"
	"github.com/rendis/aivault/internal/secrets"
	"github.com/rendis/aivault/pkg/schema"
)

// DefaultVersion is reported to MCP clients when no build version is set.
const DefaultVersion = "0.1.0"

// CommandRunner executes a command with secrets injected. Satisfied by
// *executor.Executor.
type CommandRunner interface {
	Run(ctx context.Context, in executor.RunInput, secretValues map[string]string) *schema.RunResult
}

// AivaultServerDeps holds the dependencies for creating an AivaultServer.
type AivaultServerDeps struct {
	// Vault is nil when no master password is configured. Tools that need
	// the vault then answer with an error result instead of failing.
	Vault   secrets.Vault
	Runner  CommandRunner
	Logger  *slog.Logger
	Version string
}

// AivaultServer wraps an MCP server with the vault tool handlers.
type AivaultServer struct {
	vault     secrets.Vault
	runner    CommandRunner
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewAivaultServer creates a new AivaultServer with all 3 tools registered.
func NewAivaultServer(deps AivaultServerDeps) *AivaultServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	runner := deps.Runner
	if runner == nil {
		runner = executor.NewFromProcess(logger, 0)
	}
	version := deps.Version
	if version == "" {
		version = DefaultVersion
	}

	s := &AivaultServer{
		vault:  deps.Vault,
		runner: runner,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"aivault",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("aivault keeps credentials out of the conversation. Use list_secrets to discover which secrets exist, run_command to execute shell commands that reference them as $SECRET_NAME (output comes back scrubbed), and request_secret to ask the user to add a missing one."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *AivaultServer) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO speaks the stdio transport over in and out.
func (s *AivaultServer) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *AivaultServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *AivaultServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: listSecretsTool(), Handler: s.handleListSecrets},
		{Tool: runCommandTool(), Handler: s.handleRunCommand},
		{Tool: requestSecretTool(), Handler: s.handleRequestSecret},
	}
}

// --- Tool definitions ---

func listSecretsTool() mcp.Tool {
	return mcp.NewTool("list_secrets",
		mcp.WithDescription("List available secrets (names, descriptions, tags only, never values). Use this to discover what credentials are available."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter secrets by (e.g., \"project-x\")")),
		mcp.WithString("filter", mcp.Description("Optional boolean expression over name, description and tags (e.g., 'name startsWith \"AWS_\"')")),
	)
}

func runCommandTool() mcp.Tool {
	return mcp.NewTool("run_command",
		mcp.WithDescription("Execute a shell command with secrets injected as environment variables. Reference secrets using $SECRET_NAME syntax. Output is scrubbed of any secret values before returning."),
		mcp.WithString("command", mcp.Required(), mcp.Description("The shell command to execute. Reference secrets using $SECRET_NAME syntax.")),
		mcp.WithString("working_directory", mcp.Description("Optional working directory. Defaults to home directory.")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Optional timeout in seconds. Defaults to 30, max 300.")),
	)
}

func requestSecretTool() mcp.Tool {
	return mcp.NewTool("request_secret",
		mcp.WithDescription("Request a secret that does not exist yet. Returns a user-friendly message the AI can relay to the user."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The proposed name for the secret (e.g., GITHUB_TOKEN)")),
		mcp.WithString("reason", mcp.Required(), mcp.Description("Why the AI needs this secret")),
		mcp.WithString("suggested_description", mcp.Description("A suggested description for the secret")),
	)
}
