package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/common/logger"
)

// DriverLoopback names the built-in development pipeline
const DriverLoopback = "loopback"

func init() {
	Register(DriverLoopback, func(log *logger.Logger) (Pipeline, error) {
		return NewLoopback(log), nil
	})
}

// Loopback is an in-process pipeline used for development and tests. It
// echoes the last user message back as streamed block replies, and a
// `/call <tool> {json args}` message invokes the named tool through the
// registered tool sources with both lifecycle hooks fired around it.
type Loopback struct {
	logger *logger.Logger

	mu      sync.RWMutex
	hooks   Hooks
	sources []ToolSource
}

var _ Pipeline = (*Loopback)(nil)

// NewLoopback creates the development pipeline
func NewLoopback(log *logger.Logger) *Loopback {
	return &Loopback{
		logger: log.WithFields(zap.String("component", "loopback-pipeline")),
	}
}

// RegisterHooks installs the tool-call lifecycle hooks
func (p *Loopback) RegisterHooks(h Hooks) {
	p.mu.Lock()
	p.hooks = h
	p.mu.Unlock()
}

// RegisterToolSource installs a per-run tool provider
func (p *Loopback) RegisterToolSource(src ToolSource) {
	p.mu.Lock()
	p.sources = append(p.sources, src)
	p.mu.Unlock()
}

// Dispatch runs one request to completion against the dispatcher
func (p *Loopback) Dispatch(ctx context.Context, req Request, d Dispatcher, opts RunOptions) error {
	if opts.OnRunStart != nil {
		opts.OnRunStart(opts.RunID)
	}

	p.mu.RLock()
	hooks := p.hooks
	sources := make([]ToolSource, len(p.sources))
	copy(sources, p.sources)
	p.mu.RUnlock()

	tools := collectTools(ctx, sources)
	prompt := lastUserMessage(req.Messages)

	p.logger.Debug("dispatching run",
		zap.String("thread_id", req.ThreadID),
		zap.String("run_id", opts.RunID),
		zap.Int("tools", len(tools)))

	if name, args, ok := parseCallDirective(prompt); ok {
		return p.invokeTool(ctx, d, opts, hooks, tools, name, args)
	}

	// Echo the prompt word by word as streamed partial text
	words := strings.Fields(prompt)
	for i, word := range words {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := d.SendBlockReply(ctx, chunk); err != nil {
			return fmt.Errorf("block reply failed: %w", err)
		}
	}

	return d.SendFinalReply(ctx, "")
}

// invokeTool fires the lifecycle hooks around one tool execution
func (p *Loopback) invokeTool(ctx context.Context, d Dispatcher, opts RunOptions, hooks Hooks, tools []Tool, name string, args map[string]interface{}) error {
	ev := ToolHookEvent{ToolName: name, Params: args}
	if hooks.BeforeToolCall != nil {
		hooks.BeforeToolCall(ctx, ev)
	}

	var (
		content interface{}
		isError bool
	)
	if tool := findTool(tools, name); tool != nil && tool.Handler != nil {
		out, err := tool.Handler(ctx, args)
		if err != nil {
			content = err.Error()
			isError = true
		} else {
			content = out
		}
	} else {
		content = fmt.Sprintf("unknown tool %q", name)
		isError = true
	}

	after := ev
	after.Result = content
	if hooks.AfterToolResult != nil {
		hooks.AfterToolResult(ctx, after)
	}

	result := ToolResult{ToolName: name, Content: content, IsError: isError}
	d.NotifyToolResult(ctx, result)
	if opts.OnToolResult != nil {
		opts.OnToolResult(result)
	}

	return d.SendFinalReply(ctx, "")
}

func collectTools(ctx context.Context, sources []ToolSource) []Tool {
	var tools []Tool
	for _, src := range sources {
		tools = append(tools, src(ctx)...)
	}
	return tools
}

func findTool(tools []Tool, name string) *Tool {
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i]
		}
	}
	return nil
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// parseCallDirective recognizes `/call <tool>` with an optional trailing JSON
// argument object
func parseCallDirective(prompt string) (string, map[string]interface{}, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(prompt), "/call ")
	if !found {
		return "", nil, false
	}

	name, rawArgs, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if name == "" {
		return "", nil, false
	}

	var args map[string]interface{}
	if rawArgs = strings.TrimSpace(rawArgs); rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return "", nil, false
		}
	}
	return name, args, true
}
