package biz

import (
	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/model"
)

// PluginWriter is an interface for output plugins
type PluginWriter interface {
	PluginWrite(snap *graph.Snapshot) error
}

// Limiter decides whether a snapshot may be rendered now.
type Limiter interface {
	Allow() bool
}

// PacketSession is a capture session as seen by the Worker.
type PacketSession interface {
	Next() (model.PacketRecord, error)
	Close() error
}

// SessionOpener binds a new session to iface.
type SessionOpener func(iface model.Interface, filter model.ProtocolFilter) (PacketSession, error)
