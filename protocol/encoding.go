// Package protocol turns graph snapshots into the bytes handed to outputs.
package protocol

import (
	"sort"
	"strings"

	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/model"
)

type Codec interface {
	// Marshal returns the wire format of v.
	Marshal(v *graph.Snapshot) ([]byte, error)
	// Unmarshal parses the wire format into v.
	Unmarshal(data []byte, v *graph.Snapshot) error
	// Name returns the name of the Codec implementation. The result must be
	// static; the result cannot change between calls.
	Name() string
	// ContentType is sent along with the encoded snapshot.
	ContentType() string
}

var registeredCodecs = make(map[string]Codec)

func RegisterCodec(codec Codec) {
	if codec == nil {
		panic("cannot register a nil Codec")
	}
	if codec.Name() == "" {
		panic("cannot register Codec with empty string result for Name()")
	}
	contentSubtype := strings.ToLower(codec.Name())
	registeredCodecs[contentSubtype] = codec
}

// GetCodec returns nil for an unknown name. The name is expected to be lowercase.
func GetCodec(codecType string) Codec {
	return registeredCodecs[codecType]
}

// CodecNames lists the registered codecs, sorted.
func CodecNames() []string {
	names := make([]string, 0, len(registeredCodecs))
	for name := range registeredCodecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nodesOf rebuilds the sorted node list from decoded edges.
func nodesOf(edges []model.Edge) []graph.Node {
	m := graph.NewModel()
	for _, e := range edges {
		m.Ingest(model.PacketRecord{Source: e.A, Destination: e.B})
	}
	return m.Snapshot().Nodes
}
