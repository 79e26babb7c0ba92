package plugin

import (
	"fmt"
	"io"
	"os"

	"github.com/vearne/netvine/graph"
)

// DummyOutput used for debugging, prints one summary line per snapshot
type DummyOutput struct {
	w io.Writer
}

// NewDummyOutput constructor for DummyOutput
func NewDummyOutput() (di *DummyOutput) {
	di = new(DummyOutput)
	di.w = os.Stdout
	return
}

// PluginWrite writes snapshot summary to this plugin
func (i *DummyOutput) PluginWrite(snap *graph.Snapshot) error {
	_, err := fmt.Fprintf(i.w, "[%s] version:%d, nodes:%d, edges:%d\n",
		snap.TakenAt.Format("15:04:05.000"), snap.Version, snap.NodeCount(), snap.EdgeCount())
	return err
}

func (i *DummyOutput) String() string {
	return "dummy"
}
