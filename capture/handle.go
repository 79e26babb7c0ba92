package capture

import (
	"net"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
	"github.com/vearne/netvine/size"
	slog "github.com/vearne/simplelog"
)

// Options that can be set on a pcap capture handle,
// these options take effect on inactive pcap handles
type Options struct {
	// BufferTimeout is the pcap read timeout. It bounds how long Close
	// waits for a pending read, 500ms when zero.
	BufferTimeout time.Duration `json:"input-raw-buffer-timeout"`
	BufferSize    size.Size     `json:"input-raw-buffer-size"`
	Promiscuous   bool          `json:"input-raw-promisc"`
	// Snaplen forces the maximum snapshot length instead of MTU+200.
	Snaplen bool       `json:"input-raw-override-snaplen"`
	Engine  EngineType `json:"input-raw-engine"`
}

const defaultBufferTimeout = 500 * time.Millisecond

// Source is a live packet source. *pcap.Handle satisfies it.
type Source interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Close()
}

// openSource is a package-level variable so tests can capture without libpcap.
var openSource = openEngine

// openPcapHandle returns an activated pcap handle on iface with the
// protocol filter applied.
func openPcapHandle(iface model.Interface, filter model.ProtocolFilter, opts Options) (Source, error) {
	inactive, err := pcap.NewInactiveHandle(iface.Name)
	if err != nil {
		return nil, classifyOpenError(iface, errors.Wrap(err, "inactive handle"))
	}
	defer inactive.CleanUp()

	if opts.Promiscuous {
		if err = inactive.SetPromisc(true); err != nil {
			return nil, classifyOpenError(iface, errors.Wrap(err, "promiscuous mode"))
		}
	}
	if err = inactive.SetSnapLen(snapLen(iface.Name, opts.Snaplen)); err != nil {
		return nil, classifyOpenError(iface, errors.Wrap(err, "snapshot length"))
	}
	if opts.BufferSize > 0 {
		if err = inactive.SetBufferSize(int(opts.BufferSize)); err != nil {
			return nil, classifyOpenError(iface, errors.Wrap(err, "handle buffer size"))
		}
	}
	if err = inactive.SetTimeout(opts.BufferTimeout); err != nil {
		return nil, classifyOpenError(iface, errors.Wrap(err, "handle buffer timeout"))
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, classifyOpenError(iface, errors.Wrap(err, "activate"))
	}

	if bpf := filter.BPF(); bpf != "" {
		if err = handle.SetBPFFilter(bpf); err != nil {
			handle.Close()
			return nil, errors.WithMessagef(consts.ErrInterfaceUnavailable,
				"interface %q, BPF filter %q: %v", iface.Name, bpf, err)
		}
	}
	slog.Info("[CAPTURE] interface:%v, BPF filter:%q, link type:%v", iface.Name, filter.BPF(), handle.LinkType())
	return handle, nil
}

func snapLen(name string, override bool) int {
	if !override {
		if ifi, err := net.InterfaceByName(name); err == nil && ifi.MTU > 0 {
			return ifi.MTU + 200
		}
	}
	return 64<<10 + 200
}

// classifyOpenError maps a failure to open iface onto ErrPrivilegeDenied or
// ErrInterfaceUnavailable.
func classifyOpenError(iface model.Interface, err error) error {
	if isPermissionError(err) {
		return errors.WithMessagef(consts.ErrPrivilegeDenied, "interface %q: %v", iface.Name, err)
	}
	return errors.WithMessagef(consts.ErrInterfaceUnavailable, "interface %q: %v", iface.Name, err)
}

func isPermissionError(err error) bool {
	if isPermissionErrno(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission") ||
		strings.Contains(msg, "not permitted") ||
		strings.Contains(msg, "access is denied")
}
