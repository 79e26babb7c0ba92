package plugin

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/protocol"
)

// StdOutput prints every snapshot, encoded with its codec, to stderr.
type StdOutput struct {
	codec protocol.Codec
	w     io.Writer
}

func NewStdOutput(codec string) (*StdOutput, error) {
	var o StdOutput
	o.codec = protocol.GetCodec(codec)
	if o.codec == nil {
		return nil, errors.Errorf("unknown codec %q, expect one of %v", codec, protocol.CodecNames())
	}
	o.w = os.Stderr
	return &o, nil
}

func (o *StdOutput) Close() error {
	return nil
}

func (o *StdOutput) PluginWrite(snap *graph.Snapshot) (err error) {
	var (
		data []byte
	)

	data, err = o.codec.Marshal(snap)
	if err != nil {
		return err
	}

	_, err = o.w.Write(data)
	if err != nil {
		return err
	}
	// make it more readable
	_, err = o.w.Write([]byte{'\n', '\n'})
	return err
}

func (o *StdOutput) String() string {
	return "stdout"
}
