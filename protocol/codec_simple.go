package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/model"
)

const CodecSimpleName = "simple"

func init() {
	RegisterCodec(CodecSimple{})
}

// CodecSimple writes a header line followed by one edge per line.
//
//	{version} {nodes} {edges}
//	{a} {b}
type CodecSimple struct{}

func (c CodecSimple) Marshal(snap *graph.Snapshot) ([]byte, error) {
	buff := bytes.NewBuffer(make([]byte, 0, 32*(len(snap.Edges)+1)))
	buff.WriteString(fmt.Sprintf("%d %d %d", snap.Version, len(snap.Nodes), len(snap.Edges)))
	buff.Write([]byte{'\n'})
	for _, e := range snap.Edges {
		buff.WriteString(e.A)
		buff.WriteByte(' ')
		buff.WriteString(e.B)
		buff.Write([]byte{'\n'})
	}
	return buff.Bytes(), nil
}

func (c CodecSimple) Unmarshal(data []byte, snap *graph.Snapshot) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return errors.WithMessage(consts.ErrProtocol, "missing header line")
	}
	header := strings.Split(scanner.Text(), " ")
	if len(header) != 3 {
		return errors.WithMessagef(consts.ErrProtocol, "bad header %q", scanner.Text())
	}
	counts := make([]uint64, 3)
	for i, field := range header {
		n, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return errors.WithMessagef(consts.ErrProtocol, "bad header %q", scanner.Text())
		}
		counts[i] = n
	}

	edges := make([]model.Edge, 0, counts[2])
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		pair := strings.Split(line, " ")
		if len(pair) != 2 {
			return errors.WithMessagef(consts.ErrProtocol, "bad edge line %q", line)
		}
		e, ok := model.NewEdge(pair[0], pair[1])
		if !ok {
			return errors.WithMessagef(consts.ErrProtocol, "bad edge line %q", line)
		}
		edges = append(edges, e)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if uint64(len(edges)) != counts[2] {
		return errors.WithMessagef(consts.ErrProtocol, "expect %d edges, got %d", counts[2], len(edges))
	}

	snap.Version = counts[0]
	snap.Edges = edges
	snap.Nodes = nodesOf(edges)
	if uint64(len(snap.Nodes)) != counts[1] {
		return errors.WithMessagef(consts.ErrProtocol, "expect %d nodes, got %d", counts[1], len(snap.Nodes))
	}
	return nil
}

func (c CodecSimple) Name() string {
	return CodecSimpleName
}

func (c CodecSimple) ContentType() string {
	return "text/plain; charset=utf-8"
}
