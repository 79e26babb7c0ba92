package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/model"
)

const CodecJsonName = "json"

func init() {
	RegisterCodec(CodecJson{})
}

type CodecJson struct{}

func (c CodecJson) Marshal(v *graph.Snapshot) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal keeps only edges stored in normalized form; nodes are rebuilt
// from the edges.
func (c CodecJson) Unmarshal(data []byte, v *graph.Snapshot) error {
	var snap graph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.WithMessagef(consts.ErrProtocol, "decode json: %v", err)
	}
	for _, e := range snap.Edges {
		normalized, ok := model.NewEdge(e.A, e.B)
		if !ok || normalized != e {
			return errors.WithMessagef(consts.ErrProtocol, "bad edge %v", e)
		}
	}
	if snap.Edges == nil {
		snap.Edges = []model.Edge{}
	}
	snap.Nodes = nodesOf(snap.Edges)
	*v = snap
	return nil
}

func (c CodecJson) Name() string {
	return CodecJsonName
}

func (c CodecJson) ContentType() string {
	return "application/json"
}
