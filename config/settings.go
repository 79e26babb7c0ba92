// Package config holds the netvine settings and the command line parsers
// that fill them.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/capture"
	"github.com/vearne/netvine/model"
	"github.com/vearne/netvine/size"
	"github.com/vearne/netvine/util"
	"gopkg.in/yaml.v3"
)

// MultiStringOption collects every value of a repeatable string flag.
// e.g. --ignore-interface=docker0 --ignore-interface=lo
type MultiStringOption struct {
	Params *[]string
}

func (h *MultiStringOption) String() string {
	if h.Params == nil {
		return ""
	}
	return fmt.Sprint(*h.Params)
}

// Set gets called multiple times for each flag with same name
func (h *MultiStringOption) Set(value string) error {
	if h.Params == nil {
		return nil
	}

	*h.Params = append(*h.Params, value)
	return nil
}

// AppSettings is the main configuration of netvine. Field tags match the
// command line flag names so a YAML file can use the same keys.
type AppSettings struct {
	ConfigFile string        `json:"config" yaml:"-"`
	ExitAfter  time.Duration `json:"exit-after" yaml:"exit-after"`

	// ######################## input #######################
	ListInterfaces   bool                 `json:"list-interfaces" yaml:"list-interfaces"`
	Interface        string               `json:"interface" yaml:"interface"`
	Protocol         model.ProtocolFilter `json:"protocol" yaml:"protocol"`
	IgnoreInterfaces []string             `json:"ignore-interface" yaml:"ignore-interface"`
	// how long one interface listing query may take
	EnumerateTimeout time.Duration `json:"enumerate-timeout" yaml:"enumerate-timeout"`
	EnumerateCache   time.Duration `json:"enumerate-cache" yaml:"enumerate-cache"`

	InputRAWEngine          capture.EngineType `json:"input-raw-engine" yaml:"input-raw-engine"`
	InputRAWPromiscuous     bool               `json:"input-raw-promisc" yaml:"input-raw-promisc"`
	InputRAWOverrideSnapLen bool               `json:"input-raw-override-snaplen" yaml:"input-raw-override-snaplen"`
	InputRAWBufferSize      size.Size          `json:"input-raw-buffer-size" yaml:"input-raw-buffer-size"`
	InputRAWBufferTimeout   time.Duration      `json:"input-raw-buffer-timeout" yaml:"input-raw-buffer-timeout"`

	// ######################## filter ########################
	// keep only records with an endpoint matching this regular expression
	IncludeFilterAddressMatch string   `json:"include-filter-address-match" yaml:"include-filter-address-match"`
	ExcludeFilterNetworks     []string `json:"exclude-filter-network" yaml:"exclude-filter-network"`

	// ######################## pipeline ######################
	EventBuffer     int           `json:"event-buffer" yaml:"event-buffer"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" yaml:"shutdown-timeout"`
	// Snapshots per second pushed to the outputs, 0 means every change
	RenderQPS int `json:"render-qps" yaml:"render-qps"`

	// ######################## output ########################
	Codec        string `json:"codec" yaml:"codec"`
	OutputStdout bool   `json:"output-stdout" yaml:"output-stdout"`
	OutputDummy  bool   `json:"output-dummy" yaml:"output-dummy"`
	// listen address of the Server-Sent Events endpoint, e.g. ":8080"
	OutputSSE string `json:"output-sse" yaml:"output-sse"`

	OutputKafkaBrokers []string `json:"output-kafka-broker" yaml:"output-kafka-broker"`
	OutputKafkaTopic   string   `json:"output-kafka-topic" yaml:"output-kafka-topic"`
}

// Default values applied by Normalize when a field is left empty.
const (
	DefaultEnumerateTimeout = 5 * time.Second
	DefaultEnumerateCache   = 5 * time.Second
	DefaultBufferTimeout    = 500 * time.Millisecond
	DefaultEventBuffer      = 10000
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultCodec            = "simple"
	DefaultKafkaTopic       = "netvine-graph"
)

// CaptureOptions are the pcap handle settings of a capture session.
func (s *AppSettings) CaptureOptions() capture.Options {
	return capture.Options{
		BufferTimeout: s.InputRAWBufferTimeout,
		BufferSize:    s.InputRAWBufferSize,
		Promiscuous:   s.InputRAWPromiscuous,
		Snaplen:       s.InputRAWOverrideSnapLen,
		Engine:        s.InputRAWEngine,
	}
}

// EnumeratorConfig configures interface listing.
func (s *AppSettings) EnumeratorConfig() capture.EnumeratorConfig {
	return capture.EnumeratorConfig{
		Timeout:  s.EnumerateTimeout,
		CacheTTL: s.EnumerateCache,
		Ignore:   s.IgnoreInterfaces,
	}
}

// LoadFile merges a YAML file into settings. Keys absent from the file keep
// their current value.
func LoadFile(path string, settings *AppSettings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	if err = yaml.Unmarshal(data, settings); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

// Normalize validates the settings and fills defaults.
func (s *AppSettings) Normalize() error {
	protocol, err := model.ParseProtocolFilter(string(s.Protocol))
	if err != nil {
		return err
	}
	s.Protocol = protocol

	s.IgnoreInterfaces = util.Dedupe(s.IgnoreInterfaces)
	s.OutputKafkaBrokers = util.Dedupe(s.OutputKafkaBrokers)
	s.ExcludeFilterNetworks = util.Dedupe(s.ExcludeFilterNetworks)

	if s.EnumerateTimeout <= 0 {
		s.EnumerateTimeout = DefaultEnumerateTimeout
	}
	if s.EnumerateCache < 0 {
		s.EnumerateCache = 0
	}
	if s.InputRAWEngine == 0 {
		s.InputRAWEngine = capture.EnginePcap
	}
	if s.InputRAWBufferTimeout <= 0 {
		s.InputRAWBufferTimeout = DefaultBufferTimeout
	}
	if s.EventBuffer <= 0 {
		s.EventBuffer = DefaultEventBuffer
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.RenderQPS < 0 {
		return errors.Errorf("render-qps must not be negative, got %d", s.RenderQPS)
	}
	if s.Codec == "" {
		s.Codec = DefaultCodec
	}
	if len(s.OutputKafkaBrokers) > 0 && s.OutputKafkaTopic == "" {
		s.OutputKafkaTopic = DefaultKafkaTopic
	}
	return nil
}
