package filter

import (
	"net"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/model"
)

// NetworkExcludeFilter drops records with an endpoint inside the network.
type NetworkExcludeFilter struct {
	network *net.IPNet
}

// NewNetworkExcludeFilter accepts a CIDR such as 10.0.0.0/8, or a single
// address which excludes only that host.
func NewNetworkExcludeFilter(cidr string) (*NetworkExcludeFilter, error) {
	var f NetworkExcludeFilter
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		ip := net.ParseIP(cidr)
		if ip == nil {
			return nil, errors.Wrapf(err, "exclude network %q", cidr)
		}
		bits := 8 * net.IPv6len
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 8 * net.IPv4len
		}
		network = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
	}
	f.network = network
	return &f, nil
}

// Filter :If ok is true, it means that the record can pass
func (f *NetworkExcludeFilter) Filter(rec model.PacketRecord) bool {
	return !f.contains(rec.Source) && !f.contains(rec.Destination)
}

func (f *NetworkExcludeFilter) contains(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && f.network.Contains(ip)
}
