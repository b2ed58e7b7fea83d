package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/pkg/pipeline"
)

// NewToolSource returns a pipeline tool source that drains the client tool
// definitions stashed for the session key carried by the context. No key or
// an empty stash yields no tools. The produced descriptors are pass-throughs:
// executing one does no real work and echoes the supplied arguments back as
// the nominal result, because the authoritative result arrives later as a new
// request carrying the client's actual tool output.
func NewToolSource(store *Store, log *logger.Logger) pipeline.ToolSource {
	toolLog := log.WithFields(zap.String("component", "client-tool-source"))
	return func(ctx context.Context) []pipeline.Tool {
		key := pipeline.SessionKeyFromContext(ctx)
		if key == "" {
			return nil
		}
		defs := store.DrainClientTools(key)
		if len(defs) == 0 {
			return nil
		}

		tools := make([]pipeline.Tool, 0, len(defs))
		for _, def := range defs {
			params := def.Parameters
			if len(params) == 0 {
				params = emptyObjectSchema()
			}
			tools = append(tools, pipeline.Tool{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
				Handler:     passthroughHandler,
			})
		}

		toolLog.Debug("providing client tools",
			zap.String("session_key", key),
			zap.Int("count", len(tools)))
		return tools
	}
}

// passthroughHandler echoes the call arguments as the nominal tool result
func passthroughHandler(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// emptyObjectSchema is the parameter schema attached to client tool
// definitions that arrive without one.
func emptyObjectSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
