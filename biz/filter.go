package biz

import (
	"github.com/vearne/netvine/config"
	"github.com/vearne/netvine/filter"
)

func NewFilterChain(settings *config.AppSettings) (filter.Filter, error) {
	c := filter.NewFilterChain()

	if len(settings.IncludeFilterAddressMatch) > 0 {
		f, err := filter.NewAddressMatchIncludeFilter(settings.IncludeFilterAddressMatch)
		if err != nil {
			return nil, err
		}
		c.AddIncludeFilter(f)
	}

	for _, network := range settings.ExcludeFilterNetworks {
		f, err := filter.NewNetworkExcludeFilter(network)
		if err != nil {
			return nil, err
		}
		c.AddExcludeFilter(f)
	}
	return c, nil
}
