package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/samsamfire/gocanerr/internal/cli"
	"github.com/samsamfire/gocanerr/pkg/errframe"
	"github.com/samsamfire/gocanerr/pkg/simulator"
	log "github.com/sirupsen/logrus"
)

func printFields(w io.Writer, title string, fields []errframe.Field) {
	fmt.Fprintf(w, "                        ( %s )\n", title)
	for _, field := range fields {
		fmt.Fprintf(w, "    %-19s ( %s )\n", field.Option, field.Help)
	}
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: canerrsim [flags] <CAN interface> <options>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CAN interface:          ( CAN interface is case sensitive )")
	fmt.Fprintln(w, "    can0                ( or can1, can2 or virtual ones like vcan0, vcan1... )")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:                ( options are not case sensitive )")
	fmt.Fprintln(w, "                        ( ERROR CLASS (MASK) IN CAN ID: )")
	for _, entry := range errframe.Classes() {
		if entry.Option != "" {
			fmt.Fprintf(w, "    %-19s ( %s )\n", entry.Option, entry.Help)
		}
	}
	fmt.Fprintf(w, "    %-19s ( TX error counter )\n", "TxCount=<00..FF>")
	fmt.Fprintf(w, "    %-19s ( RX error counter )\n", "RxCount=<00..FF>")
	fmt.Fprintln(w, "                        ( ARBITRATIONLOST IN CAN ID + BIT NUMBER IN DATA[0]: )")
	fmt.Fprintf(w, "    %-19s ( decimal lost arbitration bit number in bitstream )\n", "LostArBit=<00..29>")
	printFields(w, "CONTROLLER IN CAN ID + ERROR STATUS IN DATA[1]:", errframe.ControllerFlags())
	printFields(w, "PROTOCOL ERROR IN CAN ID + TYPE IN DATA[2]:", errframe.ProtocolTypes())
	printFields(w, "PROTOCOL ERROR IN CAN ID + LOCATION IN DATA[3]:", errframe.ProtocolLocations())
	printFields(w, "TRANSCEIVER ERROR IN CAN ID + STATUS IN DATA[4]:", errframe.TransceiverStates())
	fmt.Fprintln(w, "                        ( CUSTOM BYTE TO DATA[0..7]: )")
	fmt.Fprintf(w, "    %-19s ( write hex number to one of 8 payload bytes )\n", "Data<0..7>=<00..FF>")
	fmt.Fprintln(w, "                        ( DEBUG HELPERS: )")
	fmt.Fprintf(w, "    %-19s ( display all frame bits )\n", "ShowBits")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "    canerrsim can1 LostArBit=09 Data3=AA Data4=BB ShowBits")
	fmt.Fprintln(w, "    ( can1: 9th arb. bit lost, custom bytes in Data[3] and Data[4], show debug frame bits )")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "    canerrsim vcan0 NoAck TxTimeout Active")
	fmt.Fprintln(w, "    ( vcan0: received no ACK on transmission, driver timeout, controller back to error active )")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "    canerrsim vcan0 BusError CanHiNoWire Restarted INTERM")
	fmt.Fprintln(w, "    ( vcan0: bus error, lost CANH wiring, controller restarted, protocol location intermission )")
	fmt.Fprintln(w)
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("canerrsim", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := cli.Flags{}
	flags.Register(fs)

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
	// At least one fault option is needed
	if fs.NArg() < 2 {
		usage(stdout, fs)
		return 0
	}
	channel, tokens := fs.Arg(0), fs.Args()[1:]
	logger, err := cli.SetupLogging(cfg.CLI.LogLevel)
	if err != nil {
		log.Errorf("invalid log level : %v", err)
		return 1
	}

	options, err := simulator.ParseArgs(tokens)
	if err != nil {
		var unknown *errframe.UnknownOptionError
		if errors.As(err, &unknown) {
			fmt.Fprintf(stdout, "Error: Invalid option %s\n", unknown.Token)
		} else {
			fmt.Fprintf(stdout, "Error: %v\n", err)
		}
		return cfg.CLI.InvalidOptionExitCode
	}
	options.Descriptor.Extended = cfg.Simulator.Extended
	frame := options.Descriptor.Frame()
	if options.ShowBits || cfg.Simulator.ShowBits {
		if err := simulator.ShowBits(stdout, frame); err != nil {
			return 1
		}
	}

	bus, err := cli.OpenBus(cfg.Bus.Interface, channel, logger)
	if err != nil {
		log.Errorf("failed to open CAN bus : %v", err)
		return 1
	}
	defer bus.Disconnect()

	sim := simulator.NewSimulator(bus, logger)
	if err := sim.Send(options.Descriptor); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	fmt.Fprintln(stdout, "CAN error frame sent")
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}
