package errframe

import (
	canerr "github.com/samsamfire/gocanerr"
)

// Descriptor is the content of one SocketCAN error frame.
// Payload bytes are only meaningful when their governing class is set.
type Descriptor struct {
	Class    ErrorClass
	Data     [8]byte
	Extended bool // display identifier with 29 bit numbering
}

// Has returns true if all the given class bits are set
func (d Descriptor) Has(class ErrorClass) bool {
	return d.Class&class == class
}

// Frame packs the descriptor into a CAN frame ready to be sent
func (d Descriptor) Frame() canerr.Frame {
	id := uint32(d.Class)&canerr.CanErrMask | canerr.CanErrFlag
	if d.Extended {
		id |= canerr.CanEffFlag
	}
	frame := canerr.NewFrame(id, 0, canerr.CanErrDlc)
	frame.Data = d.Data
	return frame
}

// FromFrame extracts the descriptor of a received error frame.
// Returns [canerr.ErrNotErrorFrame] for data and remote frames
func FromFrame(frame canerr.Frame) (Descriptor, error) {
	if !frame.IsError() {
		return Descriptor{}, canerr.ErrNotErrorFrame
	}
	return Descriptor{
		Class:    ErrorClass(frame.ID & canerr.CanErrMask),
		Data:     frame.Data,
		Extended: frame.IsExtended(),
	}, nil
}
