package canerr

// CAN identifier flags and masks, as laid out in a SocketCAN can_id
const (
	CanEffFlag uint32 = 0x80000000 // Extended frame format (29 bit identifier)
	CanRtrFlag uint32 = 0x40000000 // Remote transmission request
	CanErrFlag uint32 = 0x20000000 // Error message frame
	CanSffMask uint32 = 0x000007FF
	CanEffMask uint32 = 0x1FFFFFFF
	CanErrMask uint32 = 0x1FFFFFFF // omit EFF, RTR, ERR flags
)

// Error frames always carry 8 data bytes
const CanErrDlc uint8 = 8

// A CAN frame
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// Returns true if frame is an error message frame
func (f Frame) IsError() bool {
	return f.ID&CanErrFlag != 0
}

// Returns true if frame uses 29 bit identifier numbering
func (f Frame) IsExtended() bool {
	return f.ID&CanEffFlag != 0
}

// Interface for handling a received CAN frame
type FrameListener interface {
	Handle(frame Frame)
}

// A CAN Bus interface
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all received CAN frames
}

// Optional interface for buses that can restrict which error classes
// are delivered by the kernel
type ErrorFilterer interface {
	SetErrorFilter(mask uint32) error
}

// Optional interface for buses whose reception can stop on its own,
// e.g. after a read failure
type Terminator interface {
	Done() <-chan struct{} // Closed once reception has stopped
	Err() error            // Reason for stopping, nil if disconnected normally
}
