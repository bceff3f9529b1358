package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server is a registry of MCP tools.
//
// Tools can be called in-process with CallTool, or served to an MCP client
// with Serve, which registers every tool with the official SDK server.
type Server struct {
	log     *slog.Logger
	name    string
	version string
	mu      sync.RWMutex
	tools   map[string]*registeredTool
}

// registeredTool holds tool metadata and handler.
type registeredTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewServer creates an empty tool registry.
func NewServer(log *slog.Logger, name, version string) *Server {
	return &Server{
		log:     log.With("component", "mcp_server"),
		name:    name,
		version: version,
		tools:   make(map[string]*registeredTool, 8),
	}
}

// AddTool registers a tool. A tool with the same name is replaced.
func (s *Server) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools[tool.Name] = &registeredTool{
		tool:    tool,
		handler: handler,
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Version returns the server version.
func (s *Server) Version() string {
	return s.version
}

// ListTools returns every registered tool sorted by name.
func (s *Server) ListTools() []*mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]*mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t.tool)
	}

	slices.SortFunc(tools, func(a, b *mcp.Tool) int {
		return strings.Compare(a.Name, b.Name)
	})

	return tools
}

// CallTool executes a tool by name. Unknown tools and handler failures are
// reported as error results, not Go errors.
func (s *Server) CallTool(ctx context.Context, name string, input map[string]any) *mcp.CallToolResult {
	s.mu.RLock()
	t, exists := s.tools[name]
	s.mu.RUnlock()

	if !exists {
		return ErrorResult("Tool not found: " + name)
	}

	inputBytes, err := json.Marshal(input)
	if err != nil {
		return ErrorResult("Failed to marshal input: " + err.Error())
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: inputBytes,
		},
	}

	result, err := t.handler(ctx, req)
	if err != nil {
		return ErrorResult("Tool execution failed: " + err.Error())
	}

	if result == nil {
		return &mcp.CallToolResult{Content: []mcp.Content{}}
	}

	return result
}

// SDKServer builds an official MCP server exposing the registered tools.
func (s *Server) SDKServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)

	for _, tool := range s.ListTools() {
		s.mu.RLock()
		handler := s.tools[tool.Name].handler
		s.mu.RUnlock()

		server.AddTool(tool, handler)
	}

	return server
}

// Serve runs the tools over transport until the client disconnects or ctx
// is done. Use &mcp.StdioTransport{} to serve on standard streams.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	s.log.Info("Serving MCP tools", "name", s.name, "tools", len(s.ListTools()))

	if err := s.SDKServer().Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// ObjectSchema creates an object schema from a simple type map.
//
// Input format: {"a": "float64", "b": "string"}. Properties named in
// optional are not required.
func ObjectSchema(props map[string]string, optional ...string) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(props))
	required := make([]string, 0, len(props))

	for name, goType := range props {
		properties[name] = goTypeToJSONSchema(goType)

		if !slices.Contains(optional, name) {
			required = append(required, name)
		}
	}

	slices.Sort(required)

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// goTypeToJSONSchema converts a Go type string to a JSON Schema type.
func goTypeToJSONSchema(goType string) *jsonschema.Schema {
	switch goType {
	case "string":
		return &jsonschema.Schema{Type: "string"}
	case "int", "int64", "uint64":
		return &jsonschema.Schema{Type: "integer"}
	case "float64", "number":
		return &jsonschema.Schema{Type: "number"}
	case "bool", "boolean":
		return &jsonschema.Schema{Type: "boolean"}
	case "object", "map[string]any":
		return &jsonschema.Schema{Type: "object"}
	default:
		if itemType, ok := strings.CutPrefix(goType, "[]"); ok && itemType != "" {
			return &jsonschema.Schema{
				Type:  "array",
				Items: goTypeToJSONSchema(itemType),
			}
		}

		return &jsonschema.Schema{Type: "string"}
	}
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// JSONResult creates a CallToolResult with v encoded as JSON text.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorResult("Failed to encode result: " + err.Error())
	}

	return TextResult(string(data))
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// ParseArguments unmarshals CallToolRequest arguments into dst.
func ParseArguments(req *mcp.CallToolRequest, dst any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}

	if err := json.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return nil
}
