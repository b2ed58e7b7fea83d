package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/pkg/agui"
	"github.com/kandev/agui-gateway/pkg/pipeline"
)

// RunInfo carries the identifiers of one run
type RunInfo struct {
	SessionKey string
	ThreadID   string
	RunID      string
	MessageID  string
}

// RunDispatcher implements the pipeline's callback surface for exactly one
// run, translating reply callbacks into the run's ordered event sequence. It
// owns two pieces of run-local state: whether the assistant text message has
// been started and whether the stream is closed. SendFinalReply is the sole
// owner of normal-path termination; Finish and Abort exist for the runner's
// defensive close and error paths.
type RunDispatcher struct {
	store   *Store
	emitter agui.Emitter
	info    RunInfo
	logger  *logger.Logger

	mu             sync.Mutex
	messageStarted bool
	closed         bool
}

var _ pipeline.Dispatcher = (*RunDispatcher)(nil)

// NewRunDispatcher creates the dispatcher for one run
func NewRunDispatcher(store *Store, emitter agui.Emitter, info RunInfo, log *logger.Logger) *RunDispatcher {
	return &RunDispatcher{
		store:   store,
		emitter: emitter,
		info:    info,
		logger: log.WithFields(
			zap.String("component", "run-dispatcher"),
			zap.String("run_id", info.RunID)),
	}
}

// SendBlockReply streams one chunk of partial assistant text. It does nothing
// once the stream is closed or once a client tool has been called this run.
// The first non-empty chunk opens the run's assistant message.
func (d *RunDispatcher) SendBlockReply(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || text == "" {
		return nil
	}
	if d.store.ClientToolCalled(d.info.SessionKey) {
		return nil
	}

	d.startMessageLocked()
	d.emitLocked(agui.NewTextMessageContent(d.info.MessageID, text))
	return nil
}

// SendFinalReply emits the run's terminal text, closes the assistant message
// if one was started, and terminates the stream with exactly one run-finished
// event. When a client tool was called this run the terminal text is
// discarded.
func (d *RunDispatcher) SendFinalReply(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	if d.store.ClientToolCalled(d.info.SessionKey) {
		text = ""
	}
	if text != "" {
		d.startMessageLocked()
		d.emitLocked(agui.NewTextMessageContent(d.info.MessageID, text))
	}

	d.finishLocked()
	return nil
}

// NotifyToolResult acknowledges a tool result without emitting anything; tool
// events are entirely the hooks' responsibility. The return value reports
// whether the stream is still open.
func (d *RunDispatcher) NotifyToolResult(ctx context.Context, result pipeline.ToolResult) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

// WaitIdle reports idle immediately; the dispatcher queues nothing
func (d *RunDispatcher) WaitIdle(ctx context.Context) error {
	return nil
}

// QueuedCount reports zero; the dispatcher queues nothing
func (d *RunDispatcher) QueuedCount() int {
	return 0
}

// Finish closes out a run whose dispatch returned without ever reaching
// SendFinalReply, so that every run ends in exactly one terminal event. It
// does nothing if the stream already terminated.
func (d *RunDispatcher) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.finishLocked()
}

// Abort terminates the stream with a run-error event carrying the error
// description. It does nothing if the stream already terminated.
func (d *RunDispatcher) Abort(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	msg := "run failed"
	if err != nil {
		msg = err.Error()
	}
	d.emitLocked(agui.NewRunError(msg))
	d.closed = true
}

// MarkClosed flips the closed flag without emitting anything, turning all
// further dispatcher writes into no-ops. Used when the client disconnects
// mid-run.
func (d *RunDispatcher) MarkClosed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Closed reports whether the stream has terminated
func (d *RunDispatcher) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// startMessageLocked opens the run's assistant message on first use
func (d *RunDispatcher) startMessageLocked() {
	if d.messageStarted {
		return
	}
	d.emitLocked(agui.NewTextMessageStart(d.info.MessageID))
	d.messageStarted = true
}

// finishLocked ends the assistant message if one was started, emits the
// run-finished event, and marks the stream closed.
func (d *RunDispatcher) finishLocked() {
	if d.messageStarted {
		d.emitLocked(agui.NewTextMessageEnd(d.info.MessageID))
	}
	d.emitLocked(agui.NewRunFinished(d.info.ThreadID, d.info.RunID))
	d.closed = true
}

// emitLocked writes one event unless the stream is closed. A write failure
// means the remote peer is gone; it closes the stream so the remaining
// emission calls of the run become silent no-ops.
func (d *RunDispatcher) emitLocked(event agui.Event) {
	if d.closed {
		return
	}
	if err := d.emitter.Emit(event); err != nil {
		d.closed = true
		d.logger.Debug("stream write failed, closing run output",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
