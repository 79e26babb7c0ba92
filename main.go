package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/vearne/netvine/biz"
	"github.com/vearne/netvine/capture"
	"github.com/vearne/netvine/config"
	"github.com/vearne/netvine/consts"
	"github.com/vearne/netvine/model"
	"github.com/vearne/netvine/protocol"
	slog "github.com/vearne/simplelog"
)

const banner string = `
    _   __     __        _
   / | / /__  / /__   __(_)___  ___
  /  |/ / _ \/ __/ | / / / __ \/ _ \
 / /|  /  __/ /_ | |/ / / / / /  __/
/_/ |_/\___/\__/ |___/_/_/ /_/\___/
`

var settings config.AppSettings
var version bool

func init() {
	flag.BoolVar(&version, "version", false,
		"print version")

	flag.StringVar(&settings.ConfigFile, "config", "",
		"YAML file with the same keys as the flags, flags given on the command line win")

	flag.DurationVar(&settings.ExitAfter, "exit-after", 0, "exit after specified duration")

	// #################### input ######################
	flag.BoolVar(&settings.ListInterfaces, "list-interfaces", false,
		"print the capturable network interfaces and exit")

	flag.StringVar(&settings.Interface, "interface", "",
		`interface to capture on, the first listed interface when empty:
                netvine --interface=wlan0 --protocol=tcp --output-stdout`)

	flag.Var(&settings.Protocol, "protocol",
		fmt.Sprintf("only capture this protocol, one of %v", model.ProtocolFilters))

	flag.Var(&config.MultiStringOption{Params: &settings.IgnoreInterfaces}, "ignore-interface",
		"interface to leave out of the listing, repeatable: --ignore-interface=docker0 --ignore-interface=lo")

	flag.DurationVar(&settings.EnumerateTimeout, "enumerate-timeout", config.DefaultEnumerateTimeout,
		"how long one interface listing query may take")

	flag.DurationVar(&settings.EnumerateCache, "enumerate-cache", config.DefaultEnumerateCache,
		"how long an interface listing is reused, 0 disables the cache")

	flag.Var(&settings.InputRAWEngine, "input-raw-engine",
		"how frames are read: libpcap or raw_socket (linux only)")

	flag.BoolVar(&settings.InputRAWPromiscuous, "input-raw-promisc", false,
		"enable promiscuous mode on the capture interface")

	flag.BoolVar(&settings.InputRAWOverrideSnapLen, "input-raw-override-snaplen", false,
		"use the maximum snapshot length instead of interface MTU + 200")

	flag.Var(&settings.InputRAWBufferSize, "input-raw-buffer-size",
		"size of the pcap kernel buffer, e.g. 2mb")

	flag.DurationVar(&settings.InputRAWBufferTimeout, "input-raw-buffer-timeout", config.DefaultBufferTimeout,
		"pcap read timeout, bounds how long stopping a capture takes")

	// #################### filter ######################
	flag.StringVar(&settings.IncludeFilterAddressMatch, "include-filter-address-match", "",
		`only graph records with an endpoint matching the regular expression:
                netvine --interface=eth0 --include-filter-address-match="^192\.168\."`)

	flag.Var(&config.MultiStringOption{Params: &settings.ExcludeFilterNetworks}, "exclude-filter-network",
		"leave out records touching this network or address, repeatable: --exclude-filter-network=127.0.0.0/8")

	// #################### pipeline ######################
	flag.IntVar(&settings.EventBuffer, "event-buffer", config.DefaultEventBuffer,
		"capacity of the queue between capture and graph")

	flag.DurationVar(&settings.ShutdownTimeout, "shutdown-timeout", config.DefaultShutdownTimeout,
		"how long to wait for the capture to stop")

	flag.IntVar(&settings.RenderQPS, "render-qps", 0,
		"snapshots pushed to the outputs per second, 0 renders every change")

	// #################### output ######################
	flag.StringVar(&settings.Codec, "codec", config.DefaultCodec,
		fmt.Sprintf("snapshot encoding, one of %v", protocol.CodecNames()))

	flag.BoolVar(&settings.OutputStdout, "output-stdout", false,
		"Just prints snapshots to console")

	flag.BoolVar(&settings.OutputDummy, "output-dummy", false,
		"prints one summary line per snapshot")

	flag.StringVar(&settings.OutputSSE, "output-sse", "",
		`serve /events (Server-Sent Events), /graph and /metrics on this address:
                netvine --interface=eth0 --output-sse=":8080"`)

	flag.Var(&config.MultiStringOption{Params: &settings.OutputKafkaBrokers}, "output-kafka-broker",
		`publish snapshots to kafka, repeatable:
                netvine --interface=eth0 --output-kafka-broker="192.168.2.100:9092" --codec=json`)

	flag.StringVar(&settings.OutputKafkaTopic, "output-kafka-topic", config.DefaultKafkaTopic, "")
}

func main() {
	fmt.Print(banner)

	adjustLogLevel()

	flag.Parse()
	if version {
		fmt.Println("service: netvine")
		fmt.Println("Version", consts.Version)
		fmt.Println("BuildTime", consts.BuildTime)
		fmt.Println("GitTag", consts.GitTag)
		return
	}

	if settings.ConfigFile != "" {
		if err := config.LoadFile(settings.ConfigFile, &settings); err != nil {
			slog.Fatal("load config error:%v", err)
		}
		// the command line overrides the file
		flag.Parse()
	}
	if err := settings.Normalize(); err != nil {
		slog.Fatal("invalid settings:%v", err)
	}

	printSettings(&settings)

	enumerator := capture.NewEnumerator(settings.EnumeratorConfig())
	if settings.ListInterfaces {
		for _, iface := range enumerator.ListInterfaces() {
			fmt.Println(iface.Name)
		}
		return
	}

	iface, err := selectInterface(enumerator, settings.Interface)
	if err != nil {
		slog.Fatal("%v", err)
	}

	plugins, err := biz.NewPlugins(&settings)
	if err != nil {
		slog.Fatal("create plugins error:%v", err)
	}
	slog.Info("plugins:%v", plugins)
	filterChain, err := biz.NewFilterChain(&settings)
	if err != nil {
		slog.Fatal("create FilterChain error:%v", err)
	}
	emitter := biz.NewEmitter(plugins, filterChain, biz.NewRateLimit(&settings))

	worker := biz.NewWorker(biz.CaptureOpener(settings.CaptureOptions()), biz.WorkerConfig{
		EventBuffer:     settings.EventBuffer,
		ShutdownTimeout: settings.ShutdownTimeout,
	})
	events, err := worker.Start(iface, settings.Protocol)
	if err != nil {
		emitter.Close()
		if errors.Is(err, consts.ErrPrivilegeDenied) {
			slog.Fatal("%v, capturing usually requires root or CAP_NET_RAW", err)
		}
		slog.Fatal("start capture error:%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() {
		runDone <- emitter.Run(ctx, events)
	}()

	closeCh := make(chan int)
	if settings.ExitAfter > 0 {
		slog.Info("Running netvine for a duration of %s", settings.ExitAfter)

		time.AfterFunc(settings.ExitAfter, func() {
			slog.Info("run timeout %s", settings.ExitAfter)
			close(closeCh)
		})
	}
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)

	exit := 0
	select {
	case err = <-runDone:
		// the capture ended by itself
		if err != nil {
			exit = 1
		}
	case <-c:
		exit = stop(worker, cancel, runDone)
	case <-closeCh:
		exit = stop(worker, cancel, runDone)
	}

	emitter.Close()
	slog.Info("worker state:%v, graph nodes:%d, edges:%d",
		worker.State(), emitter.Model().NodeCount(), emitter.Model().EdgeCount())
	os.Exit(exit)
}

// stop ends the capture and waits for the emitter to flush.
func stop(worker *biz.Worker, cancel context.CancelFunc, runDone <-chan error) int {
	if err := worker.Stop(); err != nil {
		slog.Error("stop capture:%v", err)
		cancel()
	}
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("emitter:%v", err)
		return 1
	}
	return 0
}

func selectInterface(enumerator *capture.Enumerator, name string) (model.Interface, error) {
	if name != "" {
		return model.Interface{Name: name}, nil
	}
	ifaces := enumerator.ListInterfaces()
	if len(ifaces) == 0 {
		return model.Interface{}, errors.WithMessage(consts.ErrInterfaceUnavailable,
			"no interface found, pass --interface")
	}
	slog.Info("no --interface given, using %v", ifaces[0].Name)
	return ifaces[0], nil
}

func printSettings(settings *config.AppSettings) {
	slog.Info("config, %v", settings.ConfigFile)
	slog.Info("interface, %v", settings.Interface)
	slog.Info("protocol, %v", settings.Protocol)
	slog.Info("ignore-interface, %v", settings.IgnoreInterfaces)
	slog.Info("input-raw-engine, %v", settings.InputRAWEngine.String())
	slog.Info("input-raw-buffer-timeout, %v", settings.InputRAWBufferTimeout)

	slog.Info("include-filter-address-match, %v", settings.IncludeFilterAddressMatch)
	slog.Info("exclude-filter-network, %v", settings.ExcludeFilterNetworks)
	slog.Info("render-qps, %v", settings.RenderQPS)
	slog.Info("codec, %v", settings.Codec)
	slog.Info("output-stdout, %v", settings.OutputStdout)
	slog.Info("output-dummy, %v", settings.OutputDummy)
	slog.Info("output-sse, %v", settings.OutputSSE)
	slog.Info("output-kafka-broker, %v", strings.Join(settings.OutputKafkaBrokers, ","))
	slog.Info("output-kafka-topic, %v", settings.OutputKafkaTopic)
}

func adjustLogLevel() {
	logLevel := os.Getenv("SIMPLE_LOG_LEVEL")
	if len(logLevel) > 0 {
		return
	}
	slog.SetLevel(slog.InfoLevel)
}
