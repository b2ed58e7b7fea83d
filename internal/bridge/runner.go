package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/internal/tracing"
	"github.com/kandev/agui-gateway/pkg/agui"
	"github.com/kandev/agui-gateway/pkg/pipeline"
)

// Runner executes one run at a time against the host pipeline: it binds the
// session's emitter, opens the run envelope, hands the dispatcher to the
// pipeline, and guarantees teardown of per-session state whatever the
// outcome.
type Runner struct {
	store  *Store
	pipe   pipeline.Pipeline
	logger *logger.Logger
	tracer trace.Tracer
}

// NewRunner creates a runner bound to the shared store and a pipeline
func NewRunner(store *Store, pipe pipeline.Pipeline, log *logger.Logger) *Runner {
	return &Runner{
		store:  store,
		pipe:   pipe,
		logger: log.WithFields(zap.String("component", "run-orchestrator")),
		tracer: tracing.Tracer("agui-gateway/bridge"),
	}
}

// Run executes one run and blocks until its stream has terminated. The
// run-started event is always emitted first; exactly one terminal event
// follows whatever the pipeline does. Cancelling the context marks the stream
// closed and forwards the cancellation into the pipeline. State bound under
// the session key is cleared on every exit path.
func (r *Runner) Run(ctx context.Context, sessionKey string, input agui.RunAgentInput, since time.Time, emitter agui.Emitter) error {
	runID := input.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	messageID := uuid.New().String()

	log := r.logger.WithFields(
		zap.String("session_key", sessionKey),
		zap.String("thread_id", input.ThreadID),
		zap.String("run_id", runID))

	r.store.BindEmitter(sessionKey, emitter, messageID)
	defer r.store.Clear(sessionKey)

	if err := emitter.Emit(agui.NewRunStarted(input.ThreadID, runID)); err != nil {
		log.Debug("emitting run-started failed", zap.Error(err))
	}

	if len(input.Tools) > 0 {
		r.store.StashClientTools(sessionKey, input.Tools)
		names := make([]string, 0, len(input.Tools))
		for _, tool := range input.Tools {
			names = append(names, tool.Name)
		}
		r.store.MarkClientTools(sessionKey, names...)
		log.Debug("stashed client tools", zap.Strings("tools", names))
	}

	dispatcher := NewRunDispatcher(r.store, emitter, RunInfo{
		SessionKey: sessionKey,
		ThreadID:   input.ThreadID,
		RunID:      runID,
		MessageID:  messageID,
	}, r.logger)

	ctx = pipeline.WithSessionKey(ctx, sessionKey)
	ctx, span := r.tracer.Start(ctx, "bridge.run", trace.WithAttributes(
		attribute.String("thread.id", input.ThreadID),
		attribute.String("run.id", runID),
	))
	defer span.End()

	// A disconnect must silence writes immediately, not only when the
	// pipeline notices the cancellation.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			dispatcher.MarkClosed()
		case <-watchDone:
		}
	}()

	req := pipeline.Request{
		ThreadID: input.ThreadID,
		Messages: toPipelineMessages(input.Messages),
		Since:    since,
	}
	opts := pipeline.RunOptions{
		RunID: runID,
		OnRunStart: func(id string) {
			log.Debug("pipeline accepted run", zap.String("pipeline_run_id", id))
		},
		OnToolResult: func(result pipeline.ToolResult) {
			log.Debug("pipeline reported tool result",
				zap.String("tool", result.ToolName),
				zap.Bool("is_error", result.IsError))
		},
	}

	if err := r.pipe.Dispatch(ctx, req, dispatcher, opts); err != nil {
		if ctx.Err() != nil {
			dispatcher.MarkClosed()
			log.Debug("run cancelled", zap.Error(err))
			return fmt.Errorf("run cancelled: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		dispatcher.Abort(err)
		log.Error("pipeline dispatch failed", zap.Error(err))
		return fmt.Errorf("dispatch failed: %w", err)
	}

	if !dispatcher.Closed() {
		log.Debug("dispatch returned with stream open, closing defensively")
		dispatcher.Finish()
	}
	return nil
}

func toPipelineMessages(messages []agui.Message) []pipeline.Message {
	out := make([]pipeline.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, pipeline.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	return out
}
