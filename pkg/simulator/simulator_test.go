package simulator

import (
	"bytes"
	"errors"
	"testing"

	canerr "github.com/samsamfire/gocanerr"
	"github.com/samsamfire/gocanerr/pkg/errframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureBus struct {
	sent []canerr.Frame
	err  error
}

func (b *captureBus) Connect(...any) error                 { return nil }
func (b *captureBus) Disconnect() error                    { return nil }
func (b *captureBus) Subscribe(canerr.FrameListener) error { return nil }

func (b *captureBus) Send(frame canerr.Frame) error {
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, frame)
	return nil
}

func TestParseArgs(t *testing.T) {
	options, err := ParseArgs([]string{"LostArBit=09", "showbits", "BusOff"})
	assert.Nil(t, err)
	assert.True(t, options.ShowBits)
	assert.Equal(t, errframe.ClassLostArbitration|errframe.ClassBusOff, options.Descriptor.Class)
	assert.EqualValues(t, 9, options.Descriptor.Data[0])

	_, err = ParseArgs([]string{"BusOff", "Meltdown"})
	assert.ErrorIs(t, err, canerr.ErrUnknownOption)
}

func TestShowBits(t *testing.T) {
	desc, err := errframe.EncodeArgs([]string{"LostArBit=09", "NoAck", "BusOff", "TX"})
	require.Nil(t, err)
	out := &bytes.Buffer{}
	assert.Nil(t, ShowBits(out, desc.Frame()))
	assert.Equal(t,
		"CAN ID   = 00100000000000000000000001101010\n"+
			"CAN Data = 09 00 80 00 00 00 00 00\n",
		out.String())
}

func TestSend(t *testing.T) {
	bus := &captureBus{}
	sim := NewSimulator(bus, nil)
	desc, err := sim.SendArgs([]string{"TxTimeout", "TxCount=80", "RxCount=7F"})
	assert.Nil(t, err)
	require.Len(t, bus.sent, 1)
	frame := bus.sent[0]
	assert.EqualValues(t, 0x20000201, frame.ID)
	assert.EqualValues(t, 8, frame.DLC)
	assert.Equal(t, [8]byte{0, 0, 0, 0, 0, 0, 0x80, 0x7F}, frame.Data)
	assert.Equal(t, desc.Frame(), frame)
}

func TestSendNothingOnInvalidOption(t *testing.T) {
	bus := &captureBus{}
	sim := NewSimulator(bus, nil)
	_, err := sim.SendArgs([]string{"BusOff", "LostArBit=30"})
	assert.ErrorIs(t, err, canerr.ErrUnknownOption)
	assert.Len(t, bus.sent, 0)
}

func TestSendBusFailure(t *testing.T) {
	busErr := errors.New("no buffer space available")
	sim := NewSimulator(&captureBus{err: busErr}, nil)
	_, err := sim.SendArgs([]string{"BusOff"})
	assert.ErrorIs(t, err, busErr)
}
