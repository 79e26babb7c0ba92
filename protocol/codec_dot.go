package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/model"
)

const CodecDotName = "dot"

func init() {
	RegisterCodec(CodecDot{})
}

// CodecDot writes an undirected Graphviz graph, one statement per line.
type CodecDot struct{}

func (c CodecDot) Marshal(snap *graph.Snapshot) ([]byte, error) {
	buff := bytes.NewBuffer(make([]byte, 0, 48*(len(snap.Nodes)+len(snap.Edges)+3)))
	buff.WriteString("graph netvine {\n")
	buff.WriteString(fmt.Sprintf("\t// version %d\n", snap.Version))
	for _, n := range snap.Nodes {
		buff.WriteString(fmt.Sprintf("\t%s [family=%s];\n", strconv.Quote(n.Address), strconv.Quote(n.Family)))
	}
	for _, e := range snap.Edges {
		buff.WriteString(fmt.Sprintf("\t%s -- %s;\n", strconv.Quote(e.A), strconv.Quote(e.B)))
	}
	buff.WriteString("}\n")
	return buff.Bytes(), nil
}

var (
	dotVersionLine = regexp.MustCompile(`^\s*// version (\d+)\s*$`)
	dotEdgeLine    = regexp.MustCompile(`^\s*("(?:[^"\\]|\\.)*")\s*--\s*("(?:[^"\\]|\\.)*")\s*;?\s*$`)
)

// Unmarshal reads back what Marshal writes. Node statements are rebuilt
// from the edges.
func (c CodecDot) Unmarshal(data []byte, snap *graph.Snapshot) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() || scanner.Text() != "graph netvine {" {
		return errors.WithMessage(consts.ErrProtocol, "missing graph statement")
	}
	var (
		version uint64
		edges   []model.Edge
		closed  bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "}" {
			closed = true
			break
		}
		if m := dotVersionLine.FindStringSubmatch(line); m != nil {
			v, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				return errors.WithMessagef(consts.ErrProtocol, "bad version line %q", line)
			}
			version = v
			continue
		}
		m := dotEdgeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		a, errA := strconv.Unquote(m[1])
		b, errB := strconv.Unquote(m[2])
		e, ok := model.NewEdge(a, b)
		if errA != nil || errB != nil || !ok {
			return errors.WithMessagef(consts.ErrProtocol, "bad edge statement %q", line)
		}
		edges = append(edges, e)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if !closed {
		return errors.WithMessage(consts.ErrProtocol, "graph statement not closed")
	}
	snap.Version = version
	snap.Edges = edges
	snap.Nodes = nodesOf(edges)
	return nil
}

func (c CodecDot) Name() string {
	return CodecDotName
}

func (c CodecDot) ContentType() string {
	return "text/vnd.graphviz"
}
