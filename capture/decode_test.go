package capture

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
)

var (
	testSrcMAC = net.HardwareAddr{0x3c, 0x22, 0xfb, 0x00, 0x00, 0x01}
	testDstMAC = net.HardwareAddr{0x3c, 0x22, 0xfb, 0x00, 0x00, 0x02}
)

func serialize(t *testing.T, l ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, l...)
	assert.Nil(t, err)
	return buf.Bytes()
}

func ipv4Frame(t *testing.T, src, dst string) []byte {
	return serialize(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
			SrcIP: net.ParseIP(src).To4(), DstIP: net.ParseIP(dst).To4()},
		&layers.UDP{SrcPort: 53000, DstPort: 53},
		gopacket.Payload([]byte("netvine")),
	)
}

func ipv6Frame(t *testing.T, src, dst string) []byte {
	return serialize(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv6},
		&layers.IPv6{Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolTCP,
			SrcIP: net.ParseIP(src), DstIP: net.ParseIP(dst)},
		&layers.TCP{SrcPort: 40000, DstPort: 443, Window: 1024},
	)
}

func arpFrame(t *testing.T) []byte {
	return serialize(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   testSrcMAC,
			SourceProtAddress: []byte{10, 0, 0, 1},
			DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
			DstProtAddress:    []byte{10, 0, 0, 2},
		},
	)
}

func TestExtractRecordIPv4(t *testing.T) {
	rec, err := ExtractRecord(ipv4Frame(t, "10.0.0.1", "10.0.0.2"), layers.LinkTypeEthernet)
	assert.Nil(t, err)
	assert.Equal(t, model.PacketRecord{Source: "10.0.0.1", Destination: "10.0.0.2"}, rec)
}

func TestExtractRecordIPv6(t *testing.T) {
	rec, err := ExtractRecord(ipv6Frame(t, "fe80::1", "fe80::2"), layers.LinkTypeEthernet)
	assert.Nil(t, err)
	assert.Equal(t, model.PacketRecord{Source: "fe80::1", Destination: "fe80::2"}, rec)
}

func TestExtractRecordMalformed(t *testing.T) {
	_, err := ExtractRecord(arpFrame(t), layers.LinkTypeEthernet)
	assert.True(t, errors.Is(err, consts.ErrMalformedPacket))

	_, err = ExtractRecord([]byte{0x01, 0x02, 0x03}, layers.LinkTypeEthernet)
	assert.True(t, errors.Is(err, consts.ErrMalformedPacket))

	_, err = ExtractRecord(nil, layers.LinkTypeEthernet)
	assert.True(t, errors.Is(err, consts.ErrMalformedPacket))
}
