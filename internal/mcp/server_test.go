package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	mcpgo "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type echoArgs struct {
	Text string `json:"text"`
}

func newEchoServer() *Server {
	server := NewServer(discardLogger(), "demo", "1.0.0")
	server.AddTool(
		NewTool("echo", "echoes text", ObjectSchema(map[string]string{"text": "string"})),
		func(_ context.Context, req *mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			var args echoArgs
			if err := ParseArguments(req, &args); err != nil {
				return nil, err
			}

			return TextResult("echo: " + args.Text), nil
		},
	)
	server.AddTool(
		NewTool("fails", "always fails", ObjectSchema(nil)),
		func(context.Context, *mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			return nil, errors.New("boom")
		},
	)

	return server
}

func textOf(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()

	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcpgo.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	return text.Text
}

func TestServer_ListAndCallTool(t *testing.T) {
	server := newEchoServer()

	require.Equal(t, "demo", server.Name())
	require.Equal(t, "1.0.0", server.Version())

	tools := server.ListTools()
	require.Len(t, tools, 2)
	require.Equal(t, "echo", tools[0].Name)
	require.Equal(t, "fails", tools[1].Name)

	result := server.CallTool(context.Background(), "echo", map[string]any{"text": "hello"})
	require.False(t, result.IsError)
	require.Equal(t, "echo: hello", textOf(t, result))

	missing := server.CallTool(context.Background(), "unknown", nil)
	require.True(t, missing.IsError)
	require.Equal(t, "Tool not found: unknown", textOf(t, missing))

	failed := server.CallTool(context.Background(), "fails", nil)
	require.True(t, failed.IsError)
	require.Contains(t, textOf(t, failed), "boom")
}

func TestServer_ServeOverTransport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientTransport, serverTransport := mcpgo.NewInMemoryTransports()

	serverSession, err := newEchoServer().SDKServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcpgo.NewClient(&mcpgo.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = session.Close() })

	listed, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listed.Tools, 2)

	result, err := session.CallTool(ctx, &mcpgo.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"text": "over the wire"},
	})
	require.NoError(t, err)
	require.Equal(t, "echo: over the wire", textOf(t, result))
}

func TestObjectSchema(t *testing.T) {
	schema := ObjectSchema(map[string]string{
		"name":   "string",
		"active": "bool",
		"scores": "[]float64",
	}, "active")

	require.Equal(t, "object", schema.Type)
	require.Equal(t, []string{"name", "scores"}, schema.Required)
	require.Equal(t, "string", schema.Properties["name"].Type)
	require.Equal(t, "boolean", schema.Properties["active"].Type)
	require.Equal(t, "array", schema.Properties["scores"].Type)
	require.Equal(t, "number", schema.Properties["scores"].Items.Type)

	empty := ObjectSchema(nil)
	require.Equal(t, "object", empty.Type)
	require.Empty(t, empty.Required)
}

func TestGoTypeToJSONSchema(t *testing.T) {
	tests := []struct {
		goType    string
		wantType  string
		wantItems string
	}{
		{goType: "string", wantType: "string"},
		{goType: "uint64", wantType: "integer"},
		{goType: "number", wantType: "number"},
		{goType: "boolean", wantType: "boolean"},
		{goType: "map[string]any", wantType: "object"},
		{goType: "[]int", wantType: "array", wantItems: "integer"},
		{goType: "customType", wantType: "string"},
	}

	for _, tt := range tests {
		t.Run(tt.goType, func(t *testing.T) {
			got := goTypeToJSONSchema(tt.goType)

			require.Equal(t, tt.wantType, got.Type)

			if tt.wantItems != "" {
				require.NotNil(t, got.Items)
				require.Equal(t, tt.wantItems, got.Items.Type)
			}
		})
	}
}

func TestParseArguments(t *testing.T) {
	t.Run("nil request leaves dst untouched", func(t *testing.T) {
		args := echoArgs{Text: "keep"}
		require.NoError(t, ParseArguments(nil, &args))
		require.Equal(t, "keep", args.Text)
	})

	t.Run("invalid json returns wrapped error", func(t *testing.T) {
		req := &mcpgo.CallToolRequest{
			Params: &mcpgo.CallToolParamsRaw{Arguments: []byte(`{"text":`)},
		}

		var args echoArgs
		err := ParseArguments(req, &args)
		require.ErrorContains(t, err, "failed to unmarshal arguments")
	})
}

func TestJSONResult(t *testing.T) {
	result := JSONResult(map[string]int{"n": 1})
	require.False(t, result.IsError)
	require.JSONEq(t, `{"n":1}`, textOf(t, result))

	bad := JSONResult(make(chan int))
	require.True(t, bad.IsError)
}
