package socketcan

import (
	"log/slog"
	"sync"

	sockcan "github.com/brutella/can"
	canerr "github.com/samsamfire/gocanerr"
	can "github.com/samsamfire/gocanerr/pkg/can"
)

// Basic wrapper for socketcan it uses the implementation
// that can be found here : https://github.com/brutella/can
// brutella/can does not expose the error filter socket option,
// so error frames are only received with "socketcanv2"

func init() {
	can.RegisterInterface("socketcan", NewSocketCanBus)
}

type SocketcanBus struct {
	bus        *sockcan.Bus
	rxCallback canerr.FrameListener
	logger     *slog.Logger
	mu         sync.Mutex
	done       chan struct{}
	err        error
}

// "Connect" implementation of Bus interface
func (socketcan *SocketcanBus) Connect(...any) error {
	socketcan.mu.Lock()
	socketcan.done = make(chan struct{})
	socketcan.err = nil
	socketcan.mu.Unlock()
	go func() {
		err := socketcan.bus.ConnectAndPublish()
		if err != nil {
			socketcan.logger.Error("exiting CAN bus reception", "err", err)
		}
		socketcan.mu.Lock()
		socketcan.err = err
		close(socketcan.done)
		socketcan.mu.Unlock()
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (socketcan *SocketcanBus) Disconnect() error {
	return socketcan.bus.Disconnect()
}

// "Send" implementation of Bus interface
func (socketcan *SocketcanBus) Send(frame canerr.Frame) error {
	return socketcan.bus.Publish(
		sockcan.Frame{
			ID:     frame.ID,
			Length: frame.DLC,
			Flags:  frame.Flags,
			Res0:   0,
			Res1:   0,
			Data:   frame.Data,
		})
}

// "Subscribe" implementation of Bus interface
func (socketcan *SocketcanBus) Subscribe(rxCallback canerr.FrameListener) error {
	socketcan.rxCallback = rxCallback
	// brutella/can defines a "Handle" interface for handling received CAN frames
	socketcan.bus.Subscribe(socketcan)
	return nil
}

// brutella/can specific "Handle" implementation
func (socketcan *SocketcanBus) Handle(frame sockcan.Frame) {
	// Convert brutella frame to our frame
	socketcan.rxCallback.Handle(canerr.Frame{ID: frame.ID, DLC: frame.Length, Flags: frame.Flags, Data: frame.Data})
}

// Closed when the brutella reception loop has returned, nil before [SocketcanBus.Connect]
func (socketcan *SocketcanBus) Done() <-chan struct{} {
	socketcan.mu.Lock()
	defer socketcan.mu.Unlock()
	return socketcan.done
}

func (socketcan *SocketcanBus) Err() error {
	socketcan.mu.Lock()
	defer socketcan.mu.Unlock()
	return socketcan.err
}

func (socketcan *SocketcanBus) SetLogger(logger *slog.Logger) {
	socketcan.logger = logger
}

func NewSocketCanBus(name string) (canerr.Bus, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(name)
	return &SocketcanBus{bus: bus, logger: slog.Default()}, err
}
