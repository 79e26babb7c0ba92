package capture

import (
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/metrics"
	"github.com/vearne/netvine/model"
	slog "github.com/vearne/simplelog"
)

// Session reads packet records from one interface with one protocol filter.
// The filter cannot change during the session.
type Session struct {
	ID     string
	iface  model.Interface
	filter model.ProtocolFilter

	source   Source
	linkType layers.LinkType

	closed    atomic.Bool
	closeOnce sync.Once

	captured  atomic.Uint64
	malformed atomic.Uint64
	metrics   *metrics.Registry
}

// SessionStats counts the frames seen by a session.
type SessionStats struct {
	Captured  uint64
	Malformed uint64
}

// Open binds a session to iface. The error wraps consts.ErrInterfaceUnavailable
// or consts.ErrPrivilegeDenied.
func Open(iface model.Interface, filter model.ProtocolFilter, opts Options) (*Session, error) {
	if iface.Name == "" {
		return nil, errors.WithMessage(consts.ErrInterfaceUnavailable, "empty interface name")
	}
	if opts.BufferTimeout <= 0 {
		opts.BufferTimeout = defaultBufferTimeout
	}

	src, err := openSource(iface, filter, opts)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		iface:    iface,
		filter:   filter,
		source:   src,
		linkType: src.LinkType(),
		metrics:  metrics.DefaultRegistry(),
	}
	slog.Info("[SESSION] %s opened, interface:%v, protocol:%v", s.ID, iface.Name, filter)
	return s, nil
}

func (s *Session) Interface() model.Interface {
	return s.iface
}

func (s *Session) Filter() model.ProtocolFilter {
	return s.filter
}

// Next blocks until a frame with network-layer addresses arrives.
// Frames without them are skipped. After Close it returns
// consts.ErrEndOfStream; any other read failure is wrapped in
// consts.ErrSessionTerminated.
func (s *Session) Next() (model.PacketRecord, error) {
	for {
		if s.closed.Load() {
			return model.PacketRecord{}, consts.ErrEndOfStream
		}

		data, _, err := s.source.ReadPacketData()
		if s.closed.Load() {
			return model.PacketRecord{}, consts.ErrEndOfStream
		}
		if err != nil {
			if temporary(err) {
				continue
			}
			slog.Error("[SESSION] %s stopped reading from %s, error:%v", s.ID, s.iface.Name, err)
			return model.PacketRecord{}, errors.WithMessagef(consts.ErrSessionTerminated,
				"read %s: %v", s.iface.Name, err)
		}

		rec, err := ExtractRecord(data, s.linkType)
		if err != nil {
			s.malformed.Add(1)
			s.metrics.PacketsMalformed.Inc()
			slog.Debug("[SESSION] %s skip frame of %d bytes:%v", s.ID, len(data), err)
			continue
		}
		s.captured.Add(1)
		s.metrics.PacketsCaptured.Inc()
		return rec, nil
	}
}

// Close is idempotent and may run while Next is blocked. The pending Next
// returns within one read timeout.
func (s *Session) Close() error {
	s.closed.Store(true)
	s.closeOnce.Do(func() {
		s.source.Close()
		stats := s.Stats()
		slog.Info("[SESSION] %s closed, captured:%d, malformed:%d", s.ID, stats.Captured, stats.Malformed)
	})
	return nil
}

func (s *Session) Stats() SessionStats {
	return SessionStats{Captured: s.captured.Load(), Malformed: s.malformed.Load()}
}

// temporary reports read errors the loop should retry.
func temporary(err error) bool {
	if enext, ok := err.(pcap.NextError); ok && enext == pcap.NextErrorTimeoutExpired {
		return true
	}
	if eno, ok := err.(syscall.Errno); ok && eno.Temporary() {
		return true
	}
	if enet, ok := err.(*net.OpError); ok && enet.Timeout() {
		return true
	}
	return false
}
