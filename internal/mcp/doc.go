// Package mcp exposes the bridge's command surface as Model Context
// Protocol tools.
//
// A Server keeps a registry of tools that can be invoked directly with
// CallTool or served to an MCP client over any transport with Serve. The
// command tools drive a running agent runtime; poll_events reads recent
// events from a ring buffer so a client can follow responses by request id.
package mcp
