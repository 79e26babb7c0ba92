package biz

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/vearne/netvine/capture"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
)

// fakeSession blocks in Next like a live capture until a record, an error
// or Close arrives. A stuck session ignores Close until unblock is closed.
type fakeSession struct {
	records   chan model.PacketRecord
	errs      chan error
	unblock   chan struct{}
	stuck     bool
	closeOnce sync.Once
	mu        sync.Mutex
	closes    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		records: make(chan model.PacketRecord, 64),
		errs:    make(chan error, 1),
		unblock: make(chan struct{}),
	}
}

func (f *fakeSession) Next() (model.PacketRecord, error) {
	select {
	case rec := <-f.records:
		return rec, nil
	case err := <-f.errs:
		return model.PacketRecord{}, err
	case <-f.unblock:
		return model.PacketRecord{}, consts.ErrEndOfStream
	}
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.closeOnce.Do(func() {
		if !f.stuck {
			close(f.unblock)
		}
	})
	return nil
}

func (f *fakeSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func openerFor(sess *fakeSession, err error) (SessionOpener, *int) {
	calls := new(int)
	return func(model.Interface, model.ProtocolFilter) (PacketSession, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return sess, nil
	}, calls
}

// frameSession decodes raw frames like a live capture session, skipping
// the ones without network-layer addresses.
type frameSession struct {
	frames    chan []byte
	unblock   chan struct{}
	closeOnce sync.Once
	malformed atomic.Int32
}

func newFrameSession() *frameSession {
	return &frameSession{
		frames:  make(chan []byte, 8),
		unblock: make(chan struct{}),
	}
}

func (f *frameSession) Next() (model.PacketRecord, error) {
	for {
		select {
		case data := <-f.frames:
			rec, err := capture.ExtractRecord(data, layers.LinkTypeEthernet)
			if err != nil {
				f.malformed.Add(1)
				continue
			}
			return rec, nil
		case <-f.unblock:
			return model.PacketRecord{}, consts.ErrEndOfStream
		}
	}
}

func (f *frameSession) Close() error {
	f.closeOnce.Do(func() { close(f.unblock) })
	return nil
}

func ipv4Frame(t *testing.T, src, dst string) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x3c, 0x22, 0xfb, 0x00, 0x00, 0x01},
			DstMAC:       net.HardwareAddr{0x3c, 0x22, 0xfb, 0x00, 0x00, 0x02},
			EthernetType: layers.EthernetTypeIPv4,
		},
		&layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
			SrcIP: net.ParseIP(src).To4(), DstIP: net.ParseIP(dst).To4()},
		&layers.UDP{SrcPort: 53000, DstPort: 53},
		gopacket.Payload([]byte("netvine")),
	)
	assert.Nil(t, err)
	return buf.Bytes()
}
