package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samsamfire/gocanerr/internal/cli"
	"github.com/samsamfire/gocanerr/pkg/errframe"
	"github.com/samsamfire/gocanerr/pkg/metrics"
	"github.com/samsamfire/gocanerr/pkg/monitor"
	"github.com/samsamfire/gocanerr/pkg/mqtt"
	log "github.com/sirupsen/logrus"
)

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: canerrdump [flags] <CAN interface> [Options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CAN interface:           ( CAN interface is case sensitive )")
	fmt.Fprintln(w, "    can0                 ( or can1, can2 or virtual ones like vcan0, vcan1... )")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:                 ( options are not case sensitive )")
	fmt.Fprintln(w, "                         ( ERROR CLASS (MASK) IN CAN ID: )")
	for _, entry := range errframe.Classes() {
		fmt.Fprintf(w, "    %-20s ( filter %s error messages )\n", entry.Ignore, entry.Help)
	}
	fmt.Fprintln(w, "                         ( DEBUG HELPERS: )")
	fmt.Fprintf(w, "    %-20s ( display all error filtering bits )\n", "ShowBits")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "    canerrdump can1 ShowBits")
	fmt.Fprintln(w, "    ( dump all CAN error messages from CAN interface can1 and show error filtering bit mask )")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "    canerrdump -mqtt tcp://localhost:1883 vcan0 IgnoreNoAck IgnoreBusOff")
	fmt.Fprintln(w, "    ( dump all CAN error messages from vcan0 except NoAck and BusOff, and publish them )")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "    canerrdump -metrics :9120 can0 IgnoreBusError")
	fmt.Fprintln(w, "    ( dump CAN error messages except BusError, and count them on http://localhost:9120/metrics )")
	fmt.Fprintln(w)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("canerrdump", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := cli.Flags{}
	flags.Register(fs)
	broker := fs.String("mqtt", "", "publish reports to this MQTT broker e.g. tcp://localhost:1883")
	topic := fs.String("topic", "", "MQTT topic of the reports (default from config, can/errors)")
	listen := fs.String("metrics", "", "serve prometheus metrics and statistics on this address e.g. :9120")

	fmt.Fprintln(stdout, "CAN Sockets Error Messages Dumper")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(stdout, fs)
			return 0
		}
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 2
	}
	cfg, err := flags.Config()
	if err != nil {
		log.Errorf("failed to load configuration : %v", err)
		return 1
	}
	channel, args, ok := cli.Channel(fs.Args(), cfg.Bus.Channel)
	if !ok {
		usage(stdout, fs)
		return 0
	}
	logger, err := cli.SetupLogging(cfg.CLI.LogLevel)
	if err != nil {
		log.Errorf("invalid log level : %v", err)
		return 1
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *topic != "" {
		cfg.MQTT.Topic = *topic
	}
	if *listen != "" {
		cfg.Metrics.Listen = *listen
	}

	tokens := append(append([]string{}, cfg.Monitor.Ignore...), args...)
	options, err := monitor.ParseArgs(tokens)
	if err != nil {
		var unknown *errframe.UnknownOptionError
		if errors.As(err, &unknown) {
			fmt.Fprintf(stdout, "Error: Invalid option: %s\n", unknown.Token)
		} else {
			fmt.Fprintf(stdout, "Error: %v\n", err)
		}
		return cfg.CLI.InvalidOptionExitCode
	}
	if options.ShowBits || cfg.Monitor.ShowBits {
		fmt.Fprintf(stdout, "Error Mask = %s\n", options.Filter)
	}

	sinks := []monitor.Sink{monitor.NewWriterSink(stdout)}
	if cfg.MQTT.Broker != "" {
		timeout, _ := cfg.MQTT.ConnectTimeout()
		publisher, err := mqtt.Dial(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      byte(cfg.MQTT.QoS),
			Retain:   cfg.MQTT.Retain,
			Timeout:  timeout,
		}, logger)
		if err != nil {
			log.Errorf("failed to connect to mqtt broker : %v", err)
			return 1
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	bus, err := cli.OpenBus(cfg.Bus.Interface, channel, logger)
	if err != nil {
		log.Errorf("failed to open CAN bus : %v", err)
		return 1
	}
	defer bus.Disconnect()

	var registry *prometheus.Registry
	if cfg.Metrics.Listen != "" {
		registry = prometheus.NewRegistry()
		collector := metrics.NewCollector()
		if err := collector.Register(registry); err != nil {
			log.Errorf("failed to register metrics : %v", err)
			return 1
		}
		sinks = append(sinks, collector)
	}

	mon := monitor.NewMonitor(logger, channel, options.Filter, sinks...)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if registry != nil {
		server := metrics.NewServer(logger, channel, registry, mon)
		go func() {
			if err := server.Serve(ctx, cfg.Metrics.Listen); err != nil {
				log.Errorf("metrics server stopped : %v", err)
			}
		}()
	}
	fmt.Fprintf(stdout, "Listening CAN bus %s for errors...\n", channel)
	start := time.Now()
	err = mon.Run(ctx, bus)
	log.Debugf("received %v error frames in %v", mon.Count(0), time.Since(start))
	if err != nil {
		log.Errorf("error while reading CAN bus : %v", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}
