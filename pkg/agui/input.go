package agui

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Message is one entry of the conversation history supplied with a run
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`              // user, assistant, system, tool
	Content string `json:"content,omitempty"` // text content
	Name    string `json:"name,omitempty"`    // tool name for tool-result messages
}

// ToolDef describes a tool the client executes on its own side. The gateway
// only announces invocations of these tools; their results arrive as a later
// run carrying the client's output.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"` // JSON schema for the arguments
}

// RunAgentInput is the request body opening one run
type RunAgentInput struct {
	ThreadID string    `json:"threadId"`
	RunID    string    `json:"runId,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Tools    []ToolDef `json:"tools,omitempty"`
}

// Validate checks structural requirements before a run starts: the thread id
// must be present, tool names must be non-empty and unique, and every supplied
// parameter schema must itself compile as a JSON schema.
func (in *RunAgentInput) Validate() error {
	if in.ThreadID == "" {
		return fmt.Errorf("threadId is required")
	}

	seen := make(map[string]bool, len(in.Tools))
	for i, tool := range in.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tools[%d]: name is required", i)
		}
		if seen[tool.Name] {
			return fmt.Errorf("tools[%d]: duplicate tool name %q", i, tool.Name)
		}
		seen[tool.Name] = true

		if len(tool.Parameters) > 0 {
			if err := compileSchema(tool.Parameters); err != nil {
				return fmt.Errorf("tools[%d] %q: invalid parameter schema: %w", i, tool.Name, err)
			}
		}
	}
	return nil
}

// compileSchema verifies a tool parameter schema is itself valid JSON schema
func compileSchema(doc map[string]interface{}) error {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tool.json", doc); err != nil {
		return err
	}
	if _, err := c.Compile("tool.json"); err != nil {
		return err
	}
	return nil
}
