package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/bridge"
	"github.com/kandev/agui-gateway/internal/common/errors"
	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/internal/events"
	"github.com/kandev/agui-gateway/internal/events/bus"
	"github.com/kandev/agui-gateway/internal/runlog"
	"github.com/kandev/agui-gateway/internal/threads"
	"github.com/kandev/agui-gateway/pkg/agui"
)

// Handler contains HTTP handlers for the gateway API
type Handler struct {
	runner  *bridge.Runner
	threads threads.Store
	runLog  *runlog.Log
	bus     bus.EventBus
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(runner *bridge.Runner, store threads.Store, runLog *runlog.Log, eventBus bus.EventBus, log *logger.Logger) *Handler {
	return &Handler{
		runner:  runner,
		threads: store,
		runLog:  runLog,
		bus:     eventBus,
		logger:  log,
	}
}

// CreateRun opens an agent run and streams its events until the run
// terminates
// POST /api/v1/runs
func (h *Handler) CreateRun(c *gin.Context) {
	var input agui.RunAgentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if err := input.Validate(); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	ctx := c.Request.Context()

	// Resolve the thread; first use creates it with a fresh session key.
	thread, err := h.threads.Resolve(ctx, input.ThreadID)
	if err != nil {
		h.logger.Error("failed to resolve thread", zap.String("thread_id", input.ThreadID), zap.Error(err))
		appErr := errors.InternalError("failed to resolve thread", err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	// From here on the response is a stream; failures surface as RUN_ERROR
	// events, not HTTP statuses.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	stream := agui.NewStreamEmitter(c.Writer)
	defer stream.Close()

	emitter := &mirrorEmitter{
		threadID: input.ThreadID,
		stream:   stream,
		runLog:   h.runLog,
		bus:      h.bus,
		logger:   h.logger,
	}

	start := time.Now().UTC()
	if err := h.runner.Run(ctx, thread.SessionKey, input, thread.LastRunAt, emitter); err != nil {
		h.logger.Error("run failed",
			zap.String("thread_id", input.ThreadID),
			zap.String("session_key", thread.SessionKey),
			zap.Error(err))
	}

	// Record the run start even when the client has already disconnected.
	if err := h.threads.Touch(context.Background(), input.ThreadID, start); err != nil {
		h.logger.Warn("failed to touch thread", zap.String("thread_id", input.ThreadID), zap.Error(err))
	}
}

// ListThreads returns all known threads
// GET /api/v1/threads
func (h *Handler) ListThreads(c *gin.Context) {
	list, err := h.threads.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list threads", zap.Error(err))
		appErr := errors.InternalError("failed to list threads", err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	resp := ThreadsListResponse{
		Threads: make([]*ThreadResponse, len(list)),
		Total:   len(list),
	}
	for i, t := range list {
		resp.Threads[i] = threadToResponse(t)
	}

	c.JSON(http.StatusOK, resp)
}

// GetThread retrieves a thread by ID
// GET /api/v1/threads/:threadId
func (h *Handler) GetThread(c *gin.Context) {
	threadID := c.Param("threadId")
	if threadID == "" {
		appErr := errors.BadRequest("threadId is required")
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	thread, err := h.threads.Get(c.Request.Context(), threadID)
	if err != nil {
		if errors.IsNotFound(err) {
			appErr := errors.NotFound("thread", threadID)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		h.logger.Error("failed to get thread", zap.String("thread_id", threadID), zap.Error(err))
		appErr := errors.InternalError("failed to get thread", err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusOK, threadToResponse(thread))
}

// DeleteThread deletes a thread and its logged events
// DELETE /api/v1/threads/:threadId
func (h *Handler) DeleteThread(c *gin.Context) {
	threadID := c.Param("threadId")
	if threadID == "" {
		appErr := errors.BadRequest("threadId is required")
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if err := h.threads.Delete(c.Request.Context(), threadID); err != nil {
		if errors.IsNotFound(err) {
			appErr := errors.NotFound("thread", threadID)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		h.logger.Error("failed to delete thread", zap.String("thread_id", threadID), zap.Error(err))
		appErr := errors.InternalError("failed to delete thread", err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	h.runLog.Delete(threadID)

	c.Status(http.StatusNoContent)
}

// ListThreadEvents replays recently emitted events for a thread
// GET /api/v1/threads/:threadId/events?limit=N
func (h *Handler) ListThreadEvents(c *gin.Context) {
	threadID := c.Param("threadId")
	if threadID == "" {
		appErr := errors.BadRequest("threadId is required")
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			appErr := errors.BadRequest("limit must be a non-negative integer")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		limit = parsed
	}

	if _, err := h.threads.Get(c.Request.Context(), threadID); err != nil {
		if errors.IsNotFound(err) {
			appErr := errors.NotFound("thread", threadID)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		h.logger.Error("failed to get thread", zap.String("thread_id", threadID), zap.Error(err))
		appErr := errors.InternalError("failed to get thread", err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	events := h.runLog.Events(threadID, limit, time.Time{})

	c.JSON(http.StatusOK, ThreadEventsResponse{
		ThreadID: threadID,
		Events:   events,
		Total:    len(events),
	})
}

// HealthCheck returns health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   "agui-gateway",
		Timestamp: time.Now(),
	})
}

// threadToResponse converts a thread to its API representation
func threadToResponse(t *threads.Thread) *ThreadResponse {
	resp := &ThreadResponse{
		ID:        t.ID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if !t.LastRunAt.IsZero() {
		last := t.LastRunAt
		resp.LastRunAt = &last
	}
	return resp
}

// mirrorEmitter forwards each event to the SSE stream and mirrors it onto the
// run log and the event bus. Mirror failures never disturb the stream; only
// the SSE write result decides whether the run keeps producing.
type mirrorEmitter struct {
	threadID string
	stream   agui.Emitter
	runLog   *runlog.Log
	bus      bus.EventBus
	logger   *logger.Logger
}

// Emit writes the event to the stream, then records and publishes it
func (m *mirrorEmitter) Emit(event agui.Event) error {
	err := m.stream.Emit(event)

	m.runLog.Append(m.threadID, event)

	if m.bus != nil {
		busEvent := bus.NewEvent(events.RunStream, "agui-gateway", map[string]interface{}{
			"threadId": m.threadID,
			"event":    event,
		})
		if pubErr := m.bus.Publish(context.Background(), events.BuildRunStreamSubject(m.threadID), busEvent); pubErr != nil {
			m.logger.Debug("failed to mirror event to bus",
				zap.String("thread_id", m.threadID),
				zap.Error(pubErr))
		}
	}

	return err
}
