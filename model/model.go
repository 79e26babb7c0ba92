package model

import (
	"fmt"
	"strings"
)

// Interface is a capturable network interface.
type Interface struct {
	Name string `json:"name"`
}

func (i Interface) String() string {
	return i.Name
}

// ProtocolFilter restricts which frames a capture session yields.
type ProtocolFilter string

// Available protocol filters
const (
	ProtocolAll  ProtocolFilter = "ALL"
	ProtocolTCP  ProtocolFilter = "TCP"
	ProtocolUDP  ProtocolFilter = "UDP"
	ProtocolICMP ProtocolFilter = "ICMP"
)

// ProtocolFilters lists the choices offered to the user, in display order.
var ProtocolFilters = []ProtocolFilter{ProtocolAll, ProtocolTCP, ProtocolUDP, ProtocolICMP}

// ParseProtocolFilter accepts any letter case. An empty string means ALL.
func ParseProtocolFilter(v string) (ProtocolFilter, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return ProtocolAll, nil
	}
	for _, p := range ProtocolFilters {
		if string(p) == v {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid protocol %q, expect one of %v", v, ProtocolFilters)
}

// Set is here so that ProtocolFilter can implement flag.Var
func (p *ProtocolFilter) Set(v string) error {
	pf, err := ParseProtocolFilter(v)
	if err != nil {
		return err
	}
	*p = pf
	return nil
}

func (p *ProtocolFilter) String() string {
	if p == nil || *p == "" {
		return string(ProtocolAll)
	}
	return string(*p)
}

// BPF returns the capture filter expression handed to the packet source.
// ALL maps to the empty filter.
func (p ProtocolFilter) BPF() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolICMP:
		return "icmp or icmp6"
	default:
		return ""
	}
}

// PacketRecord is the minimal fact extracted from one captured frame.
type PacketRecord struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

func (r PacketRecord) String() string {
	return fmt.Sprintf("%s -> %s", r.Source, r.Destination)
}

// Edge is an unordered pair of distinct endpoints, stored with A < B.
type Edge struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewEdge normalizes the pair. ok is false for self-pairs and empty addresses.
func NewEdge(x, y string) (e Edge, ok bool) {
	if x == "" || y == "" || x == y {
		return Edge{}, false
	}
	if x > y {
		x, y = y, x
	}
	return Edge{A: x, B: y}, true
}

// Key is the ordering key of the edge.
func (e Edge) Key() string {
	return e.A + " " + e.B
}

func (e Edge) String() string {
	return fmt.Sprintf("(%s, %s)", e.A, e.B)
}

// State of a capture worker.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
	StateFailed   State = "FAILED"
)

// EventKind tells what an Event carries.
type EventKind uint8

const (
	PacketArrived EventKind = iota + 1
	Terminated
)

func (k EventKind) String() string {
	switch k {
	case PacketArrived:
		return "PacketArrived"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Event travels from the capture worker to the graph consumer.
// Reason is only set on Terminated, and is nil when the run was stopped on request.
type Event struct {
	Kind   EventKind
	Record PacketRecord
	Reason error
}

// NewPacketEvent wraps a record.
func NewPacketEvent(rec PacketRecord) Event {
	return Event{Kind: PacketArrived, Record: rec}
}

// NewTerminatedEvent builds the terminal marker.
func NewTerminatedEvent(reason error) Event {
	return Event{Kind: Terminated, Reason: reason}
}
