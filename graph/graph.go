// Package graph keeps the undirected topology of communicating endpoints.
package graph

import (
	"sync"
	"time"

	"github.com/huandu/skiplist"
	"github.com/vearne/netvine/model"
	"github.com/vearne/netvine/util"
)

// Node is an endpoint seen in at least one accepted edge.
type Node struct {
	Address string `json:"address"`
	Family  string `json:"family"`
}

// Snapshot is an immutable copy of the model. Nodes and Edges are sorted.
type Snapshot struct {
	Version uint64       `json:"version"`
	Nodes   []Node       `json:"nodes"`
	Edges   []model.Edge `json:"edges"`
	TakenAt time.Time    `json:"taken_at"`
}

func (s *Snapshot) NodeCount() int {
	return len(s.Nodes)
}

func (s *Snapshot) EdgeCount() int {
	return len(s.Edges)
}

// Model is mutated by a single owner through Ingest. Snapshot may be called
// from any goroutine.
// Nodes are only ever added as endpoints of an accepted edge, and nothing is
// removed, so the node set always equals the set of edge endpoints.
type Model struct {
	sync.RWMutex
	nodes   *skiplist.SkipList // address -> Node
	edges   *skiplist.SkipList // Edge.Key() -> model.Edge
	version uint64
}

func NewModel() *Model {
	return &Model{
		nodes: skiplist.New(skiplist.String),
		edges: skiplist.New(skiplist.String),
	}
}

// Ingest folds one record into the model. It returns true when a node or
// an edge was added; self-pairs and empty addresses are ignored.
func (m *Model) Ingest(rec model.PacketRecord) bool {
	edge, ok := model.NewEdge(rec.Source, rec.Destination)
	if !ok {
		return false
	}

	m.Lock()
	defer m.Unlock()

	if m.edges.Get(edge.Key()) != nil {
		return false
	}
	m.edges.Set(edge.Key(), edge)
	for _, addr := range []string{edge.A, edge.B} {
		if m.nodes.Get(addr) == nil {
			m.nodes.Set(addr, Node{Address: addr, Family: util.AddressFamily(addr)})
		}
	}
	m.version++
	return true
}

// Snapshot copies the model under the read lock.
func (m *Model) Snapshot() *Snapshot {
	m.RLock()
	defer m.RUnlock()

	snap := &Snapshot{
		Version: m.version,
		Nodes:   make([]Node, 0, m.nodes.Len()),
		Edges:   make([]model.Edge, 0, m.edges.Len()),
		TakenAt: time.Now(),
	}
	for elem := m.nodes.Front(); elem != nil; elem = elem.Next() {
		snap.Nodes = append(snap.Nodes, elem.Value.(Node))
	}
	for elem := m.edges.Front(); elem != nil; elem = elem.Next() {
		snap.Edges = append(snap.Edges, elem.Value.(model.Edge))
	}
	return snap
}

func (m *Model) NodeCount() int {
	m.RLock()
	defer m.RUnlock()
	return m.nodes.Len()
}

func (m *Model) EdgeCount() int {
	m.RLock()
	defer m.RUnlock()
	return m.edges.Len()
}

// Version grows by one on every change.
func (m *Model) Version() uint64 {
	m.RLock()
	defer m.RUnlock()
	return m.version
}
