package pipeline

import "context"

// ToolHookEvent is the payload a pipeline passes to lifecycle hooks
type ToolHookEvent struct {
	ToolName string
	// Params is the argument object for the invocation; nil or empty when the
	// tool takes no arguments
	Params map[string]interface{}
	// Result carries the tool output on the after-result hook; nil before
	Result interface{}
}

// Hooks are the two lifecycle entry points fired around every tool execution.
// Either func may be nil. The context carries the session key.
type Hooks struct {
	// BeforeToolCall fires after the pipeline decides to invoke a tool and
	// before the tool runs
	BeforeToolCall func(ctx context.Context, ev ToolHookEvent)
	// AfterToolResult fires once the tool's result has been persisted
	AfterToolResult func(ctx context.Context, ev ToolHookEvent)
}
