package capture

import (
	"context"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/patrickmn/go-cache"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
	"github.com/vearne/netvine/util"
	slog "github.com/vearne/simplelog"
)

// Lister returns interface names from one source.
type Lister func(ctx context.Context) ([]string, error)

// EnumeratorConfig tunes an Enumerator.
type EnumeratorConfig struct {
	// Timeout bounds each listing query, 5s when zero.
	Timeout time.Duration
	// CacheTTL keeps a non-empty result for that long, no caching when zero.
	CacheTTL time.Duration
	// Ignore removes these names from the result.
	Ignore []string
}

// Enumerator lists capturable interfaces. Primary is consulted first; when
// it fails or finds nothing, Fallback is used.
type Enumerator struct {
	Primary  Lister
	Fallback Lister

	config EnumeratorConfig
	cache  *cache.Cache
}

const interfacesCacheKey = "interfaces"

// findAllDevs is the live libpcap device discovery call. It is a
// package-level variable so tests can replace it with a stub.
var findAllDevs = pcap.FindAllDevs

// NewEnumerator returns an Enumerator querying the OS first and libpcap second.
func NewEnumerator(config EnumeratorConfig) *Enumerator {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	e := &Enumerator{
		Primary:  ListNativeInterfaces,
		Fallback: ListPcapInterfaces,
		config:   config,
	}
	if config.CacheTTL > 0 {
		e.cache = cache.New(config.CacheTTL, 2*config.CacheTTL)
	}
	return e
}

// ListInterfaces never fails: when no strategy finds anything the result is
// empty and the caller decides what to do.
func (e *Enumerator) ListInterfaces() []model.Interface {
	if e.cache != nil {
		if v, ok := e.cache.Get(interfacesCacheKey); ok {
			cached := v.([]model.Interface)
			return append([]model.Interface(nil), cached...)
		}
	}

	ignore := util.NewStringSet()
	ignore.AddAll(e.config.Ignore)

	names := e.usable(e.query("primary", e.Primary), ignore)
	if len(names) == 0 {
		slog.Warn("[ENUMERATOR] primary strategy found no interface, falling back to libpcap")
		names = e.usable(e.query("fallback", e.Fallback), ignore)
	}

	result := make([]model.Interface, 0, len(names))
	for _, name := range names {
		result = append(result, model.Interface{Name: name})
	}

	if len(result) == 0 {
		slog.Error("[ENUMERATOR] %v", consts.ErrEnumerationFailed)
		return result
	}
	if e.cache != nil {
		e.cache.SetDefault(interfacesCacheKey, append([]model.Interface(nil), result...))
	}
	return result
}

// Invalidate drops the cached result.
func (e *Enumerator) Invalidate() {
	if e.cache != nil {
		e.cache.Delete(interfacesCacheKey)
	}
}

// usable dedupes names and drops the ignored ones.
func (e *Enumerator) usable(names []string, ignore *util.StringSet) []string {
	var kept []string
	for _, name := range util.Dedupe(names) {
		if !ignore.Has(name) {
			kept = append(kept, name)
		}
	}
	return kept
}

func (e *Enumerator) query(name string, lister Lister) []string {
	if lister == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.config.Timeout)
	defer cancel()

	names, err := lister(ctx)
	if err != nil {
		slog.Warn("[ENUMERATOR] %s strategy error:%v", name, err)
		return nil
	}
	slog.Debug("[ENUMERATOR] %s strategy found:%v", name, names)
	return names
}

// ListPcapInterfaces asks libpcap for its devices.
func ListPcapInterfaces(_ context.Context) ([]string, error) {
	devices, err := findAllDevs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names, nil
}
