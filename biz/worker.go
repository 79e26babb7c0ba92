package biz

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/smallnest/gofsm"
	"github.com/vearne/netvine/capture"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/metrics"
	"github.com/vearne/netvine/model"
	slog "github.com/vearne/simplelog"
)

// backpressureRetry is how often a full event channel is retried.
const backpressureRetry = 5 * time.Millisecond

// WorkerConfig tunes a Worker.
type WorkerConfig struct {
	// EventBuffer is the capacity of the event channel, 10000 when zero.
	EventBuffer int
	// ShutdownTimeout bounds how long Stop waits, 5s when zero.
	ShutdownTimeout time.Duration
}

// Worker runs one capture session at a time on its own goroutine and
// forwards its records, in capture order, over a channel. Each run ends
// with exactly one Terminated event, after which the channel is closed.
type Worker struct {
	mu      sync.Mutex
	opener  SessionOpener
	config  WorkerConfig
	fsm     *fsm.StateMachine
	metrics *metrics.Registry

	state   model.State
	lastErr error
	session PacketSession
	stopCh  chan struct{}
	done    chan struct{}
}

// NewWorker returns an Idle worker. opener is called by Start.
func NewWorker(opener SessionOpener, config WorkerConfig) *Worker {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 10000
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}
	w := &Worker{
		opener:  opener,
		config:  config,
		fsm:     InitWorkerFSM(&WorkerEventProcessor{}),
		metrics: metrics.DefaultRegistry(),
		state:   model.StateIdle,
	}
	// a run that never started is already done
	w.done = make(chan struct{})
	close(w.done)
	w.metrics.SetWorkerState(string(model.StateIdle), workerStates)
	return w
}

// CaptureOpener opens capture sessions with opts.
func CaptureOpener(opts capture.Options) SessionOpener {
	return func(iface model.Interface, filter model.ProtocolFilter) (PacketSession, error) {
		return capture.Open(iface, filter, opts)
	}
}

// Start opens a session on iface synchronously. When the open fails the
// error is returned and the worker is Failed; it is never Running.
func (w *Worker) Start(iface model.Interface, filter model.ProtocolFilter) (<-chan model.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == model.StateRunning || w.state == model.StateStopping {
		return nil, consts.ErrAlreadyRunning
	}

	sess, err := w.opener(iface, filter)
	if err != nil {
		w.lastErr = err
		w.trigger(EventOpenFailed)
		slog.Error("[WORKER] open interface:%v, protocol:%v, error:%v", iface.Name, filter, err)
		return nil, err
	}

	events := make(chan model.Event, w.config.EventBuffer)
	w.session = sess
	w.lastErr = nil
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.trigger(EventStart)

	go w.run(sess, events, w.stopCh, w.done)
	return events, nil
}

func (w *Worker) run(sess PacketSession, events chan<- model.Event, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(events)

	var reason error
	for {
		rec, err := sess.Next()
		if err != nil {
			if !errors.Is(err, consts.ErrEndOfStream) {
				reason = err
			}
			break
		}

		if !w.forward(model.NewPacketEvent(rec), events, stopCh) {
			break
		}
	}

	w.mu.Lock()
	if w.state == model.StateStopping {
		// a failure racing with Stop still counts as a requested stop
		reason = nil
	}
	if reason != nil {
		w.lastErr = reason
		w.trigger(EventFail)
	} else {
		w.trigger(EventFinish)
	}
	w.mu.Unlock()
	sess.Close()

	// the consumer waits for this event, so the send may block
	events <- model.NewTerminatedEvent(reason)
}

// forward queues ev unless Stop has begun, and reports whether it did.
// Stop closes stopCh under w.mu, so checking and sending under the same lock
// leaves no window for a record to follow it.
func (w *Worker) forward(ev model.Event, events chan<- model.Event, stopCh <-chan struct{}) bool {
	for {
		w.mu.Lock()
		select {
		case <-stopCh:
			w.mu.Unlock()
			return false
		default:
		}
		select {
		case events <- ev:
			w.mu.Unlock()
			return true
		default:
		}
		w.mu.Unlock()

		// the consumer is behind
		select {
		case <-stopCh:
			return false
		case <-time.After(backpressureRetry):
		}
	}
}

// Stop may be called from any goroutine, any number of times. It returns
// consts.ErrShutdownTimeout when the capture goroutine did not exit within
// ShutdownTimeout; Done is closed once it does.
func (w *Worker) Stop() error {
	w.mu.Lock()
	done := w.done
	switch w.state {
	case model.StateRunning:
		w.trigger(EventStop)
		close(w.stopCh)
		sess := w.session
		w.mu.Unlock()
		sess.Close()
	case model.StateStopping:
		w.mu.Unlock()
	default:
		w.mu.Unlock()
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(w.config.ShutdownTimeout):
		slog.Warn("[WORKER] capture goroutine still running after %v", w.config.ShutdownTimeout)
		return consts.ErrShutdownTimeout
	}
}

func (w *Worker) State() model.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastError is the open failure or the error that ended the last run.
func (w *Worker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Done is closed when the goroutine of the current run has exited.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// trigger must be called with w.mu held.
func (w *Worker) trigger(event string) {
	if err := w.fsm.Trigger(string(w.state), event, w); err != nil {
		slog.Error("[WORKER] state:%v, event:%v, error:%v", w.state, event, err)
	}
}
