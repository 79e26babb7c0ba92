//go:build linux && !arm64

package capture

import (
	"io"
	"net"
	"sync"
	"time"
	"unsafe"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
	slog "github.com/vearne/simplelog"
	"golang.org/x/sys/unix"
)

const (
	// ETHALL htons(ETH_P_ALL)
	ETHALL uint16 = unix.ETH_P_ALL<<8 | unix.ETH_P_ALL>>8
	// BLOCKSIZE ring buffer block_size
	BLOCKSIZE = 64 << 10
	// BLOCKNR ring buffer block_nr
	BLOCKNR = (2 << 20) / BLOCKSIZE // 2mb / 64kb
	// FRAMESIZE ring buffer frame_size
	FRAMESIZE = BLOCKSIZE
	// FRAMENR ring buffer frame_nr
	FRAMENR = BLOCKNR * BLOCKSIZE / FRAMESIZE
)

var tpacket2hdrlen = tpAlign(int(unsafe.Sizeof(unix.Tpacket2Hdr{})))

// rawSocket is a linux mmaped af_packet socket on TPACKET_V2.
type rawSocket struct {
	mu          sync.Mutex
	fd          int
	ifindex     int
	snaplen     int
	pollTimeout int    // milliseconds, negative blocks forever
	frame       uint32 // current frame
	buf         []byte // ring buffer shared with the kernel
	loopIndex   int32  // set on loopback devices so each frame is read once
}

func openRawSocket(iface model.Interface, filter model.ProtocolFilter, opts Options) (Source, error) {
	ifi, err := net.InterfaceByName(iface.Name)
	if err != nil {
		return nil, errors.WithMessagef(consts.ErrInterfaceUnavailable, "interface %q: %v", iface.Name, err)
	}

	sock, err := newRawSocket(ifi)
	if err != nil {
		return nil, classifyOpenError(iface, err)
	}
	if opts.Promiscuous {
		if err = sock.setPromiscuous(true); err != nil {
			sock.Close()
			return nil, classifyOpenError(iface, errors.Wrap(err, "promiscuous mode"))
		}
	}
	sock.setTimeout(opts.BufferTimeout)
	if err = sock.setBPFFilter(filter.BPF()); err != nil {
		sock.Close()
		return nil, errors.WithMessagef(consts.ErrInterfaceUnavailable,
			"interface %q, BPF filter %q: %v", iface.Name, filter.BPF(), err)
	}
	slog.Info("[CAPTURE] interface:%v, raw socket, BPF filter:%q", iface.Name, filter.BPF())
	return sock, nil
}

func newRawSocket(ifi *net.Interface) (*rawSocket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(ETHALL))
	if err != nil {
		return nil, errors.Wrap(err, "socket")
	}
	sock := &rawSocket{
		fd:          fd,
		ifindex:     ifi.Index,
		snaplen:     FRAMESIZE,
		pollTimeout: -1,
	}
	if ifi.Flags&net.FlagLoopback != 0 {
		sock.loopIndex = int32(ifi.Index)
	}

	err = unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_VERSION, unix.TPACKET_V2)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "setsockopt packet_version")
	}

	addr := unix.SockaddrLinklayer{
		Protocol: ETHALL,
		Ifindex:  ifi.Index,
	}
	if err = unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "bind")
	}

	tp := &unix.TpacketReq{
		Block_size: BLOCKSIZE,
		Block_nr:   BLOCKNR,
		Frame_size: FRAMESIZE,
		Frame_nr:   FRAMENR,
	}
	if err = unix.SetsockoptTpacketReq(fd, unix.SOL_PACKET, unix.PACKET_RX_RING, tp); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "setsockopt packet_rx_ring")
	}
	sock.buf, err = unix.Mmap(fd, 0, BLOCKSIZE*BLOCKNR, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "socket mmap")
	}
	return sock, nil
}

// ReadPacketData returns unix.EAGAIN when the poll timeout expires so the
// caller can check for cancellation.
func (sock *rawSocket) ReadPacketData() (buf []byte, ci gopacket.CaptureInfo, err error) {
	sock.mu.Lock()
	defer sock.mu.Unlock()
	if sock.fd == -1 {
		return nil, ci, io.EOF
	}

	var tpHdr *unix.Tpacket2Hdr
	fds := []unix.PollFd{{Fd: int32(sock.fd), Events: unix.POLLIN}}
	var i int
read:
	i = int(sock.frame * FRAMESIZE)
	tpHdr = (*unix.Tpacket2Hdr)(unsafe.Pointer(&sock.buf[i]))

	if tpHdr.Status&unix.TP_STATUS_USER == 0 {
		n, e := unix.Poll(fds, sock.pollTimeout)
		if e != nil && e != unix.EINTR {
			return nil, ci, e
		}
		if n == 0 {
			return nil, ci, unix.EAGAIN
		}
		// another frame may hold the data
		if tpHdr.Status&unix.TP_STATUS_USER == 0 {
			sock.frame = (sock.frame + 1) % FRAMENR
			goto read
		}
	}
	sock.frame = (sock.frame + 1) % FRAMENR
	sockAddr := (*unix.RawSockaddrLinklayer)(unsafe.Pointer(&sock.buf[i+tpacket2hdrlen]))

	// loopback frames show up twice
	if sockAddr.Ifindex == sock.loopIndex && sock.frame%2 != 0 {
		tpHdr.Status = unix.TP_STATUS_KERNEL
		goto read
	}

	ci.Length = int(tpHdr.Len)
	ci.Timestamp = time.Unix(int64(tpHdr.Sec), int64(tpHdr.Nsec))
	ci.InterfaceIndex = int(sockAddr.Ifindex)
	buf = make([]byte, tpHdr.Snaplen)
	ci.CaptureLength = copy(buf, sock.buf[i+int(tpHdr.Mac):])
	tpHdr.Status = unix.TP_STATUS_KERNEL
	return buf, ci, nil
}

func (sock *rawSocket) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

// Close waits for a pending read, bounded by the poll timeout.
func (sock *rawSocket) Close() {
	sock.mu.Lock()
	defer sock.mu.Unlock()
	if sock.fd == -1 {
		return
	}
	unix.Munmap(sock.buf)
	sock.buf = nil
	if err := unix.Close(sock.fd); err != nil {
		slog.Warn("[CAPTURE] close raw socket:%v", err)
	}
	sock.fd = -1
}

func (sock *rawSocket) setTimeout(t time.Duration) {
	sock.mu.Lock()
	defer sock.mu.Unlock()
	if t <= 0 {
		sock.pollTimeout = -1
		return
	}
	sock.pollTimeout = int(t / time.Millisecond)
}

// setBPFFilter compiles expr and attaches it to the socket.
func (sock *rawSocket) setBPFFilter(expr string) error {
	sock.mu.Lock()
	defer sock.mu.Unlock()
	if expr == "" {
		return nil
	}
	filter, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, sock.snaplen, expr)
	if err != nil {
		return err
	}
	if len(filter) == 0 {
		return nil
	}
	if len(filter) > int(^uint16(0)) {
		return errors.Errorf("filters out of range 0-%d", ^uint16(0))
	}
	prog := make([]unix.SockFilter, len(filter))
	for k, ins := range filter {
		prog[k] = unix.SockFilter{Code: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := &unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	return unix.SetsockoptSockFprog(sock.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, fprog)
}

// setPromiscuous adds or drops the promiscuous membership of the interface.
func (sock *rawSocket) setPromiscuous(b bool) error {
	sock.mu.Lock()
	defer sock.mu.Unlock()
	mreq := unix.PacketMreq{
		Ifindex: int32(sock.ifindex),
		Type:    unix.PACKET_MR_PROMISC,
	}
	opt := unix.PACKET_ADD_MEMBERSHIP
	if !b {
		opt = unix.PACKET_DROP_MEMBERSHIP
	}
	return unix.SetsockoptPacketMreq(sock.fd, unix.SOL_PACKET, opt, &mreq)
}

func tpAlign(x int) int {
	return int((uint(x) + unix.TPACKET_ALIGNMENT - 1) &^ (unix.TPACKET_ALIGNMENT - 1))
}
