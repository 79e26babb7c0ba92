package capture

import (
	"fmt"

	"github.com/vearne/netvine/model"
)

// EngineType selects how frames are read off the interface.
type EngineType uint8

// Available engines for intercepting traffic
const (
	EnginePcap EngineType = 1 << iota
	EngineRawSocket
)

// Set is here so that EngineType can implement flag.Var
func (eng *EngineType) Set(v string) error {
	switch v {
	case "", "libpcap":
		*eng = EnginePcap
	case "raw_socket":
		*eng = EngineRawSocket
	default:
		return fmt.Errorf("invalid engine %s", v)
	}
	return nil
}

func (eng *EngineType) String() (e string) {
	switch *eng {
	case EnginePcap:
		e = "libpcap"
	case EngineRawSocket:
		e = "raw_socket"
	default:
		e = ""
	}
	return e
}

// UnmarshalText lets YAML config files name the engine.
func (eng *EngineType) UnmarshalText(text []byte) error {
	return eng.Set(string(text))
}

// openEngine dispatches on opts.Engine, libpcap being the default.
func openEngine(iface model.Interface, filter model.ProtocolFilter, opts Options) (Source, error) {
	if opts.Engine == EngineRawSocket {
		return openRawSocket(iface, filter, opts)
	}
	return openPcapHandle(iface, filter, opts)
}
