// Package filter decides which captured records reach the topology graph.
package filter

import "github.com/vearne/netvine/model"

type Filter interface {
	// Filter :If ok is true, it means that the record can pass
	Filter(rec model.PacketRecord) bool
}

// FilterChain passes a record only when every include filter and every
// exclude filter lets it through.
type FilterChain struct {
	includeFilters []Filter
	excludeFilters []Filter
}

func NewFilterChain() *FilterChain {
	var chain FilterChain
	chain.includeFilters = make([]Filter, 0)
	chain.excludeFilters = make([]Filter, 0)
	return &chain
}

func (c *FilterChain) AddIncludeFilter(f Filter) {
	c.includeFilters = append(c.includeFilters, f)
}

func (c *FilterChain) AddExcludeFilter(f Filter) {
	c.excludeFilters = append(c.excludeFilters, f)
}

// Len is the number of filters in the chain.
func (c *FilterChain) Len() int {
	return len(c.includeFilters) + len(c.excludeFilters)
}

func (c *FilterChain) Filter(rec model.PacketRecord) bool {
	for _, f := range c.includeFilters {
		if !f.Filter(rec) {
			return false
		}
	}

	for _, f := range c.excludeFilters {
		if !f.Filter(rec) {
			return false
		}
	}
	return true
}
