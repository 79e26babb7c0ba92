package biz

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
)

var eth0 = model.Interface{Name: "eth0"}

func drain(t *testing.T, events <-chan model.Event) []model.Event {
	t.Helper()
	var out []model.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event channel was not closed")
			return out
		}
	}
}

func TestWorkerStopRightAfterStart(t *testing.T) {
	sess := newFakeSession()
	opener, _ := openerFor(sess, nil)
	w := NewWorker(opener, WorkerConfig{})
	assert.Equal(t, model.StateIdle, w.State())

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)
	assert.Equal(t, model.StateRunning, w.State())

	assert.Nil(t, w.Stop())
	assert.Equal(t, model.StateStopped, w.State())

	got := drain(t, events)
	assert.Equal(t, []model.Event{model.NewTerminatedEvent(nil)}, got)
	assert.Nil(t, w.LastError())
}

func TestWorkerDoubleStop(t *testing.T) {
	sess := newFakeSession()
	opener, _ := openerFor(sess, nil)
	w := NewWorker(opener, WorkerConfig{})

	assert.Nil(t, w.Stop())
	assert.Equal(t, model.StateIdle, w.State())

	events, err := w.Start(eth0, model.ProtocolTCP)
	assert.Nil(t, err)
	assert.Nil(t, w.Stop())
	assert.Nil(t, w.Stop())
	assert.Equal(t, model.StateStopped, w.State())
	assert.Len(t, drain(t, events), 1)
	assert.GreaterOrEqual(t, sess.closeCount(), 1)
}

func TestWorkerOpenFailure(t *testing.T) {
	openErr := errors.WithMessage(consts.ErrPrivilegeDenied, "eth0")
	opener, _ := openerFor(nil, openErr)
	w := NewWorker(opener, WorkerConfig{})

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, events)
	assert.True(t, errors.Is(err, consts.ErrPrivilegeDenied))
	assert.Equal(t, model.StateFailed, w.State())
	assert.Equal(t, openErr, w.LastError())
	assert.Nil(t, w.Stop())
	assert.Equal(t, model.StateFailed, w.State())
}

func TestWorkerRestartAfterFailure(t *testing.T) {
	sess := newFakeSession()
	var fail = true
	w := NewWorker(func(model.Interface, model.ProtocolFilter) (PacketSession, error) {
		if fail {
			return nil, consts.ErrInterfaceUnavailable
		}
		return sess, nil
	}, WorkerConfig{})

	_, err := w.Start(eth0, model.ProtocolAll)
	assert.NotNil(t, err)
	fail = false
	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)
	assert.Equal(t, model.StateRunning, w.State())
	assert.Nil(t, w.LastError())
	assert.Nil(t, w.Stop())
	drain(t, events)
}

func TestWorkerAlreadyRunning(t *testing.T) {
	sess := newFakeSession()
	opener, calls := openerFor(sess, nil)
	w := NewWorker(opener, WorkerConfig{})

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)
	_, err = w.Start(eth0, model.ProtocolUDP)
	assert.Equal(t, consts.ErrAlreadyRunning, err)
	assert.Equal(t, 1, *calls)

	assert.Nil(t, w.Stop())
	drain(t, events)
}

func TestWorkerForwardsInOrder(t *testing.T) {
	sess := newFakeSession()
	opener, _ := openerFor(sess, nil)
	w := NewWorker(opener, WorkerConfig{EventBuffer: 4})

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)

	var want []model.PacketRecord
	for i := 0; i < 20; i++ {
		rec := model.PacketRecord{Source: "10.0.0.1", Destination: "10.0.1." + string(rune('a'+i))}
		want = append(want, rec)
		sess.records <- rec
	}

	var got []model.PacketRecord
	for len(got) < len(want) {
		ev := <-events
		assert.Equal(t, model.PacketArrived, ev.Kind)
		got = append(got, ev.Record)
	}
	assert.Equal(t, want, got)
	// nothing else happens while the session is quiet
	assert.Equal(t, model.StateRunning, w.State())

	assert.Nil(t, w.Stop())
	rest := drain(t, events)
	assert.Equal(t, model.Terminated, rest[len(rest)-1].Kind)
}

func TestWorkerSessionTerminated(t *testing.T) {
	sess := newFakeSession()
	opener, _ := openerFor(sess, nil)
	w := NewWorker(opener, WorkerConfig{})

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)
	cause := errors.WithMessage(consts.ErrSessionTerminated, "device went down")
	sess.errs <- cause

	got := drain(t, events)
	assert.Len(t, got, 1)
	assert.Equal(t, model.Terminated, got[0].Kind)
	assert.True(t, errors.Is(got[0].Reason, consts.ErrSessionTerminated))
	assert.Equal(t, model.StateFailed, w.State())
	assert.Equal(t, cause, w.LastError())
	<-w.Done()
}

func TestWorkerEndOfStream(t *testing.T) {
	sess := newFakeSession()
	opener, _ := openerFor(sess, nil)
	w := NewWorker(opener, WorkerConfig{})

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)
	sess.errs <- consts.ErrEndOfStream

	assert.Equal(t, []model.Event{model.NewTerminatedEvent(nil)}, drain(t, events))
	assert.Equal(t, model.StateStopped, w.State())
}

func TestWorkerShutdownTimeout(t *testing.T) {
	sess := newFakeSession()
	sess.stuck = true
	opener, _ := openerFor(sess, nil)
	w := NewWorker(opener, WorkerConfig{ShutdownTimeout: 50 * time.Millisecond})

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)
	assert.Equal(t, consts.ErrShutdownTimeout, w.Stop())
	assert.Equal(t, model.StateStopping, w.State())

	done := w.Done()
	select {
	case <-done:
		t.Fatal("capture goroutine exited while its session was stuck")
	default:
	}

	close(sess.unblock)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Done was not closed")
	}
	assert.Equal(t, model.StateStopped, w.State())
	assert.Equal(t, []model.Event{model.NewTerminatedEvent(nil)}, drain(t, events))
}

func TestWorkerSkipsMalformedFrame(t *testing.T) {
	sess := newFrameSession()
	w := NewWorker(func(model.Interface, model.ProtocolFilter) (PacketSession, error) {
		return sess, nil
	}, WorkerConfig{})

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)

	sess.frames <- []byte{0xde, 0xad, 0xbe, 0xef}
	sess.frames <- ipv4Frame(t, "10.0.0.1", "10.0.0.2")

	select {
	case ev := <-events:
		assert.Equal(t, model.NewPacketEvent(model.PacketRecord{Source: "10.0.0.1", Destination: "10.0.0.2"}), ev)
	case <-time.After(2 * time.Second):
		t.Fatal("record after the malformed frame was not forwarded")
	}
	assert.Equal(t, int32(1), sess.malformed.Load())
	assert.Equal(t, model.StateRunning, w.State())

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, model.StateRunning, w.State())

	assert.Nil(t, w.Stop())
	assert.Equal(t, []model.Event{model.NewTerminatedEvent(nil)}, drain(t, events))
}

func TestWorkerNoRecordAfterStop(t *testing.T) {
	sess := newFakeSession()
	opener, _ := openerFor(sess, nil)
	w := NewWorker(opener, WorkerConfig{EventBuffer: 1})

	events, err := w.Start(eth0, model.ProtocolAll)
	assert.Nil(t, err)
	first := model.PacketRecord{Source: "10.0.0.1", Destination: "10.0.0.2"}
	sess.records <- first
	sess.records <- model.PacketRecord{Source: "10.0.0.1", Destination: "10.0.0.3"}
	sess.records <- model.PacketRecord{Source: "10.0.0.1", Destination: "10.0.0.4"}

	// the first record fills the channel, the second waits for room
	assert.Eventually(t, func() bool {
		return len(events) == 1 && len(sess.records) == 1
	}, time.Second, time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()
	assert.Eventually(t, func() bool {
		return w.State() != model.StateRunning
	}, time.Second, time.Millisecond)

	got := drain(t, events)
	assert.Equal(t, []model.Event{model.NewPacketEvent(first), model.NewTerminatedEvent(nil)}, got)
	assert.Nil(t, <-stopped)
	assert.Equal(t, model.StateStopped, w.State())
}
