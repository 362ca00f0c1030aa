// Package mcpadapter exposes the validation pipeline as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
	"github.com/kirillkom/efaktur-validator/internal/core/efaktur"
	"github.com/kirillkom/efaktur-validator/internal/core/ports"
)

const (
	ToolValidateText  = "validate_efaktur_text"
	ToolNormalizeText = "normalize_efaktur_text"
	ToolExtractFields = "extract_efaktur_fields"
)

// errorKinds are reported to the client by name; anything else is opaque.
var errorKinds = []error{
	domain.ErrEmptyExtraction,
	domain.ErrInvalidInput,
	domain.ErrReferenceUnavailable,
	domain.ErrReferenceParse,
	domain.ErrTemporary,
}

type Tools struct {
	validator ports.InvoiceValidator
	logger    *slog.Logger
}

func NewTools(validator ports.InvoiceValidator, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{validator: validator, logger: logger}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(ToolValidateText,
		mcp.WithDescription("Validate OCR text of an Indonesian e-Faktur against the DJP record and list deviations."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw text extracted from the invoice")),
		mcp.WithString("qr_url", mcp.Description("Payload of the invoice QR code, if known")),
	), tools.ValidateText)

	s.AddTool(mcp.NewTool(ToolNormalizeText,
		mcp.WithDescription("Clean OCR text the way the validator does before field extraction."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw OCR text")),
	), tools.NormalizeText)

	s.AddTool(mcp.NewTool(ToolExtractFields,
		mcp.WithDescription("Extract e-Faktur fields from OCR text without a DJP lookup."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw OCR text")),
	), tools.ExtractFields)

	return s
}

func (t *Tools) ValidateText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var qrURL *string
	if raw := strings.TrimSpace(request.GetString("qr_url", "")); raw != "" {
		qrURL = &raw
	}

	result, err := t.validator.ValidateText(ctx, text, qrURL)
	if err != nil {
		t.logger.Warn("mcp_validation_failed", "error", err.Error())
		return mcp.NewToolResultError(describe(err)), nil
	}
	return jsonResult(result)
}

func (t *Tools) NormalizeText(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(efaktur.Normalize(text)), nil
}

func (t *Tools) ExtractFields(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(efaktur.ExtractFields(efaktur.Normalize(text)))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func describe(err error) string {
	for _, kind := range errorKinds {
		if domain.IsKind(err, kind) {
			return kind.Error()
		}
	}
	return "internal error"
}
