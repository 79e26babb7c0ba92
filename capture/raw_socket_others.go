//go:build !linux || arm64

package capture

import (
	"github.com/pkg/errors"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
)

func openRawSocket(iface model.Interface, _ model.ProtocolFilter, _ Options) (Source, error) {
	return nil, errors.WithMessagef(consts.ErrInterfaceUnavailable,
		"interface %q: raw socket engine is only available on linux", iface.Name)
}
