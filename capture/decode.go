package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
)

// ExtractRecord pulls the network-layer endpoints out of a raw frame.
// Frames without an IPv4 or IPv6 layer yield consts.ErrMalformedPacket.
func ExtractRecord(data []byte, linkType layers.LinkType) (model.PacketRecord, error) {
	packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		if ip.SrcIP != nil && ip.DstIP != nil {
			return model.PacketRecord{Source: ip.SrcIP.String(), Destination: ip.DstIP.String()}, nil
		}
	case *layers.IPv6:
		if ip.SrcIP != nil && ip.DstIP != nil {
			return model.PacketRecord{Source: ip.SrcIP.String(), Destination: ip.DstIP.String()}, nil
		}
	}
	return model.PacketRecord{}, consts.ErrMalformedPacket
}
