package pipeline

import "context"

// Tool is a callable tool descriptor registered for one run
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema for the tool's arguments
	Parameters map[string]interface{}
	// Handler executes the tool. Client-proxied tools use a pass-through
	// handler; the real execution happens on the remote peer.
	Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ToolResult is the outcome of one tool execution
type ToolResult struct {
	ToolName string
	Content  interface{}
	IsError  bool
}

// ToolSource produces the tools available for one run. The pipeline calls it
// at run start with a context carrying the session key.
type ToolSource func(ctx context.Context) []Tool
