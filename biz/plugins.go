package biz

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/config"
	"github.com/vearne/netvine/metrics"
	"github.com/vearne/netvine/plugin"
	slog "github.com/vearne/simplelog"
)

// InOutPlugins struct for holding references to plugins
type InOutPlugins struct {
	Outputs []PluginWriter
	All     []interface{}
}

// NewPlugins specify and initialize all available plugins
func NewPlugins(settings *config.AppSettings) (*InOutPlugins, error) {
	plugins := new(InOutPlugins)

	if settings.OutputStdout {
		slog.Debug("NewStdOutput, codec:%v", settings.Codec)
		if err := plugins.registerPlugin(plugin.NewStdOutput, settings.Codec); err != nil {
			return plugins, err
		}
	}

	if settings.OutputDummy {
		slog.Debug("NewDummyOutput")
		if err := plugins.registerPlugin(plugin.NewDummyOutput); err != nil {
			return plugins, err
		}
	}

	if settings.OutputSSE != "" {
		slog.Debug("NewSSEOutput, addr:%v", settings.OutputSSE)
		err := plugins.registerPlugin(plugin.NewSSEOutput, settings.OutputSSE, settings.Codec,
			metrics.DefaultRegistry())
		if err != nil {
			return plugins, err
		}
	}

	if len(settings.OutputKafkaBrokers) > 0 {
		slog.Debug("NewKafkaOutput, brokers:%v, topic:%v", settings.OutputKafkaBrokers, settings.OutputKafkaTopic)
		cfg := &plugin.OutputKafkaConfig{
			Brokers: settings.OutputKafkaBrokers,
			Topic:   settings.OutputKafkaTopic,
			Codec:   settings.Codec,
		}
		if err := plugins.registerPlugin(plugin.NewKafkaOutput, cfg); err != nil {
			return plugins, err
		}
	}

	return plugins, nil
}

// Automatically detects type of plugin and initialize it.
// A constructor may return the plugin alone or the plugin and an error.
func (plugins *InOutPlugins) registerPlugin(constructor interface{}, options ...interface{}) error {
	vc := reflect.ValueOf(constructor)

	// Pre-processing options to make it work with reflect
	vo := []reflect.Value{}
	for _, oi := range options {
		vo = append(vo, reflect.ValueOf(oi))
	}

	// Calling our constructor with list of given options
	out := vc.Call(vo)
	if len(out) > 1 && !out[1].IsNil() {
		return errors.Wrapf(out[1].Interface().(error), "create %v", vc.Type())
	}
	plugin := out[0].Interface()

	if w, ok := plugin.(PluginWriter); ok {
		plugins.Outputs = append(plugins.Outputs, w)
	}
	plugins.All = append(plugins.All, plugin)
	return nil
}

func (plugins *InOutPlugins) String() string {
	return fmt.Sprintf("#####  len(Outputs):%d, len(All):%d   #####",
		len(plugins.Outputs), len(plugins.All))
}
