package filter

import (
	"regexp"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/model"
)

// AddressMatchIncludeFilter keeps records with at least one endpoint
// matching the expression.
type AddressMatchIncludeFilter struct {
	r *regexp.Regexp
}

func NewAddressMatchIncludeFilter(expr string) (*AddressMatchIncludeFilter, error) {
	var f AddressMatchIncludeFilter
	var err error
	f.r, err = regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "address expression %q", expr)
	}
	return &f, nil
}

// Filter :If ok is true, it means that the record can pass
func (f *AddressMatchIncludeFilter) Filter(rec model.PacketRecord) bool {
	return f.r.MatchString(rec.Source) || f.r.MatchString(rec.Destination)
}
