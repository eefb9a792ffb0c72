package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yapper/campaign/internal/client"
	"github.com/yapper/campaign/internal/model"
)

// Source opens one push-event connection per call. The supervisor owns all
// retry policy; the source must not retry.
type Source interface {
	OpenStatusStream(ctx context.Context, jobID string) (client.EventStream, error)
}

// EventKind classifies what the supervisor surfaces to its consumer.
type EventKind int

const (
	// EventUpdate carries one parsed status snapshot.
	EventUpdate EventKind = iota
	// EventParseError is advisory; the connection stays open.
	EventParseError
	// EventStreamDown is terminal: the retry budget is exhausted and the
	// supervisor has stopped. Only an explicit re-attach recovers.
	EventStreamDown
)

type Event struct {
	Kind   EventKind
	Update model.StatusUpdate
	Err    error
}

const (
	DefaultBackoffUnit = 2 * time.Second
	DefaultMaxRetries  = 3
)

// Supervisor maintains a live push-event connection for one job at a time,
// masking up to maxRetries consecutive connection failures behind linear
// backoff (attempt n waits n backoff units).
type Supervisor struct {
	source      Source
	backoffUnit time.Duration
	maxRetries  int
}

func NewSupervisor(source Source, backoffUnit time.Duration, maxRetries int) *Supervisor {
	if backoffUnit <= 0 {
		backoffUnit = DefaultBackoffUnit
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Supervisor{
		source:      source,
		backoffUnit: backoffUnit,
		maxRetries:  maxRetries,
	}
}

// Attach starts supervising the status stream of one job. The caller must
// Release the handle to stop supervision; the Events channel is closed once
// the supervisor goroutine exits.
func (s *Supervisor) Attach(ctx context.Context, jobID string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		jobID:  jobID,
		events: make(chan Event, 64),
		cancel: cancel,
	}
	go s.run(ctx, h)
	return h
}

// Connection lifecycle phases
type phase int

const (
	phaseConnecting phase = iota
	phaseOpen
	phaseBackoff
)

func (s *Supervisor) run(ctx context.Context, h *Handle) {
	// Events are emitted only from this goroutine, so closing here is safe.
	defer close(h.events)

	ph := phaseConnecting
	failures := 0
	terminal := false
	var conn client.EventStream

	for {
		switch ph {
		case phaseConnecting:
			c, err := s.source.OpenStatusStream(ctx, h.jobID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				if failures > s.maxRetries {
					h.emit(Event{Kind: EventStreamDown, Err: fmt.Errorf("status stream unavailable after %d attempts: %w", failures, err)})
					return
				}
				log.Printf("[Stream] job %s: connect failed (attempt %d): %v", h.jobID, failures, err)
				ph = phaseBackoff
				continue
			}
			if !h.adopt(c) {
				// Released while dialing.
				c.Close()
				return
			}
			conn = c
			// The server acknowledged the subscription: the retry budget
			// starts over.
			failures = 0
			ph = phaseOpen

		case phaseOpen:
			data, err := conn.Recv()
			if err != nil {
				conn.Close()
				h.adopt(nil)
				conn = nil
				if ctx.Err() != nil {
					return
				}
				if terminal {
					// The server closes the stream after a terminal
					// snapshot. The job is over; hold position until the
					// caller releases.
					<-ctx.Done()
					return
				}
				failures++
				if failures > s.maxRetries {
					h.emit(Event{Kind: EventStreamDown, Err: fmt.Errorf("status stream unavailable after %d attempts: %w", failures, err)})
					return
				}
				log.Printf("[Stream] job %s: connection lost (attempt %d): %v", h.jobID, failures, err)
				ph = phaseBackoff
				continue
			}

			update, perr := model.ParseStatusUpdate(data)
			if perr != nil {
				h.emit(Event{Kind: EventParseError, Err: perr})
				continue
			}
			h.emit(Event{Kind: EventUpdate, Update: update})
			if update.Status.Terminal() {
				terminal = true
			}

		case phaseBackoff:
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(failures) * s.backoffUnit):
				ph = phaseConnecting
			}
		}
	}
}

// Handle is one supervision session. Release is idempotent, safe at any
// point (including mid-backoff), and guarantees no event is emitted after
// it returns.
type Handle struct {
	jobID  string
	events chan Event
	cancel context.CancelFunc

	mu       sync.Mutex
	released bool
	conn     client.EventStream
}

func (h *Handle) JobID() string {
	return h.jobID
}

// Events delivers supervisor events in arrival order. The channel is closed
// after release (or after a terminal stream failure) once the supervisor
// goroutine has fully stopped.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Release stops supervision: it cancels any pending reconnect wait and
// closes the live connection, unblocking a pending read.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	conn := h.conn
	h.conn = nil
	h.mu.Unlock()

	h.cancel()
	if conn != nil {
		conn.Close()
	}
}

// adopt records the live connection so Release can close it. Returns false
// if the handle was already released.
func (h *Handle) adopt(c client.EventStream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.conn = c
	return true
}

// emit delivers one event unless the handle has been released. The released
// check and the send share the handle lock, which is what makes "no
// delivery after release" hold even against a reconnect racing Release.
func (h *Handle) emit(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	select {
	case h.events <- ev:
	default:
		log.Printf("[Stream] job %s: dropping event, consumer is behind", h.jobID)
	}
}
