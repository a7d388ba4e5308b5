package simulator

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	canerr "github.com/samsamfire/gocanerr"
	"github.com/samsamfire/gocanerr/pkg/errframe"
)

// Options of the simulator command line
type Options struct {
	Descriptor errframe.Descriptor
	ShowBits   bool
}

// ParseArgs separates the "ShowBits" token and encodes the remaining fault options.
// Encoding is all or nothing, see [errframe.Encode]
func ParseArgs(tokens []string) (Options, error) {
	options := Options{}
	faults := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if strings.EqualFold(token, "ShowBits") {
			options.ShowBits = true
			continue
		}
		faults = append(faults, token)
	}
	desc, err := errframe.EncodeArgs(faults)
	if err != nil {
		return Options{}, err
	}
	options.Descriptor = desc
	return options, nil
}

// ShowBits prints the identifier in binary and the payload in hex
func ShowBits(w io.Writer, frame canerr.Frame) error {
	_, err := fmt.Fprintf(w, "CAN ID   = %s\nCAN Data = %s\n",
		errframe.Binary(frame.ID),
		errframe.FormatBytes(frame.Data[:frame.DLC]),
	)
	return err
}

// Simulator injects synthesized error frames on a bus
type Simulator struct {
	bus    canerr.Bus
	logger *slog.Logger
}

func NewSimulator(bus canerr.Bus, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{bus: bus, logger: logger.With("service", "[SIM]")}
}

// Send transmits the error frame described by desc
func (s *Simulator) Send(desc errframe.Descriptor) error {
	frame := desc.Frame()
	if err := s.bus.Send(frame); err != nil {
		return fmt.Errorf("sending error frame: %w", err)
	}
	s.logger.Debug("sent error frame",
		"id", fmt.Sprintf("x%x", frame.ID),
		"description", errframe.Decode(desc).String(),
	)
	return nil
}

// SendArgs encodes fault option tokens and transmits the result.
// Nothing is sent if any token is invalid
func (s *Simulator) SendArgs(tokens []string) (errframe.Descriptor, error) {
	desc, err := errframe.EncodeArgs(tokens)
	if err != nil {
		return errframe.Descriptor{}, err
	}
	return desc, s.Send(desc)
}
