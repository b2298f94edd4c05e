package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/aivault/internal/executor"
	"github.com/rendis/aivault/internal/logging"
	"github.com/rendis/aivault/internal/secrets"
	"github.com/rendis/aivault/pkg/schema"
)

const (
	msgNoPassword     = "AIVAULT_MASTER_PASSWORD environment variable is not set. Please set it in your MCP server config."
	msgNotInitialized = "Vault not initialized. Please run \"aivault init\" in your terminal first."
)

// statusSecretRequested is the status of a request_secret response.
const statusSecretRequested = "secret_requested"

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type listBody struct {
	Secrets []secrets.SecretMetadata `json:"secrets"`
}

type requestBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Name    string `json:"name"`
	Reason  string `json:"reason"`
}

// handleListSecrets returns secret metadata, optionally narrowed by tag or
// filter expression. Values never leave the vault here.
func (s *AivaultServer) handleListSecrets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.toolContext(ctx, "list_secrets")
	if msg := s.vaultError(); msg != "" {
		return errorResult(msg), nil
	}

	tag := req.GetString("tag", "")
	filter := req.GetString("filter", "")

	var (
		list []secrets.SecretMetadata
		err  error
	)
	if filter != "" {
		list, err = s.vault.FilterSecrets(ctx, filter)
		if err == nil && tag != "" {
			list = withTag(list, tag)
		}
	} else {
		list, err = s.vault.ListSecrets(ctx, tag)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "list secrets failed", "error", err)
		return errorResult(schema.Message(err)), nil
	}
	if list == nil {
		list = []secrets.SecretMetadata{}
	}

	s.logger.DebugContext(ctx, "secrets listed", "count", len(list), "tag", tag)
	return marshalResult(listBody{Secrets: list}, false)
}

// handleRunCommand runs a command with every vault secret injected and
// returns the scrubbed result.
func (s *AivaultServer) handleRunCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.toolContext(ctx, "run_command")
	command, err := req.RequireString("command")
	if err != nil {
		return errorResult("command is required"), nil
	}
	if msg := s.vaultError(); msg != "" {
		return errorResult(msg), nil
	}

	values, err := s.vault.GetAllSecretValues(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "load secret values failed", "error", err)
		return errorResult(schema.Message(err)), nil
	}

	result := s.runner.Run(ctx, executor.RunInput{
		Command:          command,
		WorkingDirectory: req.GetString("working_directory", ""),
		TimeoutSeconds:   req.GetFloat("timeout_seconds", executor.DefaultTimeoutSeconds),
	}, values)

	return marshalResult(result, result.Status == schema.RunStatusError)
}

// handleRequestSecret builds the message the agent relays to the user when
// it needs a secret that is not in the vault. It does not touch the vault.
func (s *AivaultServer) handleRequestSecret(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.toolContext(ctx, "request_secret")
	name, err := req.RequireString("name")
	if err != nil {
		return errorResult("name is required"), nil
	}
	reason, err := req.RequireString("reason")
	if err != nil {
		return errorResult("reason is required"), nil
	}
	if !secrets.ValidName(name) {
		return errorResult(fmt.Sprintf("Invalid secret name %q. Must be uppercase letters, numbers, and underscores only, starting with a letter.", name)), nil
	}

	desc := req.GetString("suggested_description", "")
	if desc == "" {
		desc = reason
	}

	s.logger.InfoContext(ctx, "secret requested", "name", name)
	return marshalResult(requestBody{
		Status:  statusSecretRequested,
		Message: RequestMessage(name, desc),
		Name:    name,
		Reason:  reason,
	}, false)
}

// RequestMessage is the instruction shown to the user for adding a secret.
func RequestMessage(name, description string) string {
	return fmt.Sprintf("Please add the secret by running:\n\n  aivault set %s --desc %q\n\n"+
		"You will be prompted to enter the value securely. Once added, I can continue with the task.",
		name, description)
}

// vaultError reports why the vault cannot serve a request, or "" when it can.
func (s *AivaultServer) vaultError() string {
	if s.vault == nil {
		return msgNoPassword
	}
	if !s.vault.IsInitialized() {
		return msgNotInitialized
	}
	return ""
}

// toolContext tags ctx with the tool name and the client session for log
// correlation.
func (s *AivaultServer) toolContext(ctx context.Context, tool string) context.Context {
	ctx = logging.WithTool(ctx, tool)
	if session := server.ClientSessionFromContext(ctx); session != nil {
		ctx = logging.WithSessionID(ctx, session.SessionID())
	}
	return ctx
}

func withTag(list []secrets.SecretMetadata, tag string) []secrets.SecretMetadata {
	out := make([]secrets.SecretMetadata, 0, len(list))
	for _, m := range list {
		if slices.Contains(m.Tags, tag) {
			out = append(out, m)
		}
	}
	return out
}

func errorResult(message string) *mcp.CallToolResult {
	res, _ := marshalResult(errorBody{Status: "error", Message: message}, true)
	return res
}

// marshalResult converts a value to an indented JSON text tool result.
func marshalResult(v any, isError bool) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	res := mcp.NewToolResultText(string(data))
	res.IsError = isError
	return res, nil
}
