package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kirillfir/user-service/internal/infrastructure/logging"
)

// recorderChanSize is the buffer size for the async audit channel.
// Entries beyond this are dropped (best-effort) to avoid back-pressure on requests.
const recorderChanSize = 256

// Publisher delivers encoded audit events to the event bus, one topic per
// action. Satisfied by *mqtt.Client.
type Publisher interface {
	PublishAuditEvent(action string, payload []byte) error
}

// Recorder writes audit entries asynchronously and publishes each stored
// entry when a publisher is configured.
//
// Record never blocks and never fails the caller. Entries are written
// serially by a single drain goroutine, which suits SQLite's write model.
//
// Thread Safety:
//   - Record is safe for concurrent use. Start and Stop must be called once each.
type Recorder struct {
	repo   Repository
	logger *logging.Logger
	source string

	pub Publisher

	ch     chan *AuditLog
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RecorderOption customises a Recorder.
type RecorderOption func(*Recorder)

// WithPublisher publishes every stored entry after it is written.
func WithPublisher(pub Publisher) RecorderOption {
	return func(r *Recorder) {
		r.pub = pub
	}
}

// WithSource sets the Source field of recorded entries (default "api").
func WithSource(source string) RecorderOption {
	return func(r *Recorder) {
		r.source = source
	}
}

// NewRecorder creates a Recorder. Call Start before Record.
func NewRecorder(repo Repository, logger *logging.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		repo:   repo,
		logger: logger,
		source: "api",
		ch:     make(chan *AuditLog, recorderChanSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the drain goroutine.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drain(ctx)
	}()
}

// Stop waits for the drain goroutine to exit, then writes anything still
// queued. Entries recorded after the Start context ended are kept.
func (r *Recorder) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.flush()
}

// Record enqueues an account event. If the channel is full the entry is
// dropped and a warning is logged.
func (r *Recorder) Record(action, entityID, userID string, details map[string]any) {
	if r == nil {
		return
	}

	entry := &AuditLog{
		Action:     action,
		EntityType: EntityAccount,
		EntityID:   entityID,
		UserID:     userID,
		Source:     r.source,
		Details:    details,
	}

	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit channel full, dropping entry", "action", action)
	}
}

// drain writes entries until ctx is cancelled, then flushes what is left.
func (r *Recorder) drain(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			r.flush()
			return
		}
	}
}

// flush writes queued entries without waiting for more.
func (r *Recorder) flush() {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		default:
			return
		}
	}
}

// write stores one entry and publishes it. Failures are logged only.
func (r *Recorder) write(entry *AuditLog) {
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
		return
	}

	if r.pub == nil {
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		r.logger.Error("audit event encode failed", "action", entry.Action, "error", err)
		return
	}
	if err := r.pub.PublishAuditEvent(entry.Action, payload); err != nil {
		r.logger.Warn("audit event publish failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}
