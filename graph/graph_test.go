package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vearne/netvine/model"
	"github.com/vearne/netvine/util"
)

func rec(src, dst string) model.PacketRecord {
	return model.PacketRecord{Source: src, Destination: dst}
}

func TestIngestThreeRecords(t *testing.T) {
	m := NewModel()
	assert.True(t, m.Ingest(rec("10.0.0.1", "10.0.0.2")))
	assert.False(t, m.Ingest(rec("10.0.0.2", "10.0.0.1")))
	assert.True(t, m.Ingest(rec("10.0.0.1", "10.0.0.3")))

	snap := m.Snapshot()
	assert.Equal(t, 3, snap.NodeCount())
	assert.Equal(t, 2, snap.EdgeCount())
	assert.Equal(t, []model.Edge{
		{A: "10.0.0.1", B: "10.0.0.2"},
		{A: "10.0.0.1", B: "10.0.0.3"},
	}, snap.Edges)
	assert.Equal(t, uint64(2), snap.Version)
}

func TestIngestSelfPair(t *testing.T) {
	m := NewModel()
	assert.False(t, m.Ingest(rec("10.0.0.1", "10.0.0.1")))
	assert.False(t, m.Ingest(rec("", "10.0.0.1")))
	assert.False(t, m.Ingest(rec("10.0.0.1", "")))

	snap := m.Snapshot()
	assert.Len(t, snap.Nodes, 0)
	assert.Len(t, snap.Edges, 0)
	assert.Equal(t, uint64(0), snap.Version)
}

func TestSnapshotSortedWithFamily(t *testing.T) {
	m := NewModel()
	m.Ingest(rec("fe80::2", "fe80::1"))
	m.Ingest(rec("192.168.1.9", "10.0.0.1"))

	snap := m.Snapshot()
	assert.Equal(t, []Node{
		{Address: "10.0.0.1", Family: util.FamilyIPv4},
		{Address: "192.168.1.9", Family: util.FamilyIPv4},
		{Address: "fe80::1", Family: util.FamilyIPv6},
		{Address: "fe80::2", Family: util.FamilyIPv6},
	}, snap.Nodes)
	assert.Equal(t, 4, m.NodeCount())
	assert.Equal(t, 2, m.EdgeCount())
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewModel()
	m.Ingest(rec("10.0.0.1", "10.0.0.2"))
	snap := m.Snapshot()

	m.Ingest(rec("10.0.0.3", "10.0.0.4"))
	assert.Equal(t, 2, snap.NodeCount())
	assert.Equal(t, 1, snap.EdgeCount())
	assert.Equal(t, uint64(2), m.Version())
}

func TestSnapshotConcurrentWithIngest(t *testing.T) {
	m := NewModel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.Ingest(rec("10.0.0.1", "10.0.1."+string(rune('a'+i%26))))
		}
	}()
	for i := 0; i < 50; i++ {
		snap := m.Snapshot()
		assert.Equal(t, snap.NodeCount() > 0, snap.EdgeCount() > 0)
	}
	wg.Wait()
	assert.Equal(t, 26, m.EdgeCount())
}
