package socketcanv2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
	"unsafe"

	canerr "github.com/samsamfire/gocanerr"
	can "github.com/samsamfire/gocanerr/pkg/can"
	"golang.org/x/sys/unix"
)

const (
	SocketCANFrameSize = 16
	DefaultRcvTimeout  = 100 * time.Millisecond
)

func init() {
	can.RegisterInterface("socketcanv2", NewSocketCanBus)
}

// CANframe matches the layout of struct can_frame
type CANframe struct {
	id   uint32
	dlc  uint8
	pad  uint8
	res0 uint8
	res1 uint8
	data [8]uint8
}

type SocketcanBus struct {
	fd         int
	mu         sync.Mutex
	rxCallback canerr.FrameListener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	done       chan struct{}
	err        error
	logger     *slog.Logger
}

// Create a new SocketCAN bus. This expects the CAN channel to be up.
// e.g. running "ip a" should show can0 or something similar.
func NewSocketCanBus(channel string) (canerr.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, fmt.Errorf("error setting CAN interface name %v : %w", channel, err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket : %w", err)
	}
	tv := unix.NsecToTimeval(DefaultRcvTimeout.Nanoseconds())
	err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set read timeout : %w", err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error in socket bind : %w", err)
	}
	done := make(chan struct{})
	close(done)
	return &SocketcanBus{fd: fd, done: done, logger: slog.Default()}, nil
}

func (s *SocketcanBus) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// "Connect" implementation of Bus interface
func (s *SocketcanBus) Connect(...any) error {
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Lock()
	s.done = make(chan struct{})
	s.err = nil
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.processIncoming(ctx)
		s.mu.Lock()
		s.err = err
		close(s.done)
		s.mu.Unlock()
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (s *SocketcanBus) Disconnect() error {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}
	return unix.Close(s.fd)
}

// "Send" implementation of Bus interface
func (s *SocketcanBus) Send(frame canerr.Frame) error {
	n, err := unix.Write(s.fd, toRaw(frame))
	if err != nil {
		return fmt.Errorf("error writing to socket : %w", err)
	}
	if n != SocketCANFrameSize {
		return fmt.Errorf("error writing to socket : %w", canerr.ErrIncompleteFrame)
	}
	return nil
}

// "Subscribe" implementation of Bus interface
func (s *SocketcanBus) Subscribe(rxCallback canerr.FrameListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxCallback = rxCallback
	return nil
}

// Closed when reception has stopped, after a disconnect or a read failure
func (s *SocketcanBus) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Read failure that stopped reception, if any
func (s *SocketcanBus) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// process incoming frames. This is meant to be run inside of a goroutine.
// Incomplete frames are skipped, a read failure stops reception.
func (s *SocketcanBus) processIncoming(ctx context.Context) error {
	rxFrame := make([]byte, SocketCANFrameSize)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("exiting CAN bus reception, closed")
			return nil
		default:
			n, err := unix.Read(s.fd, rxFrame)
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			if err != nil {
				s.logger.Error("exiting CAN bus reception", "err", err)
				return fmt.Errorf("error reading CAN frame : %w", err)
			}
			if n < SocketCANFrameSize {
				s.logger.Warn("skipping incomplete CAN frame", "length", n)
				continue
			}
			s.mu.Lock()
			callback := s.rxCallback
			s.mu.Unlock()
			if callback != nil {
				callback.Handle(fromRaw(rxFrame))
			}
		}
	}
}

// Enable own reception on the bus. CAN be useful when testing for example
func (s *SocketcanBus) SetReceiveOwn(enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	s.logger.Info("setting option 'CAN_RAW_RECV_OWN_MSGS'", "fd", s.fd, "enabled", enabled)
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, enabledInt)
}

// Add some filtering to CAN bus
func (s *SocketcanBus) SetFilters(filters []unix.CanFilter) error {
	s.logger.Info("setting option 'CAN_RAW_FILTER'", "fd", s.fd, "filters", filters)
	return unix.SetsockoptCanRawFilter(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
}

// Select which error classes are reported as error frames.
// An empty mask disables error frames, which is the kernel default
func (s *SocketcanBus) SetErrorFilter(mask uint32) error {
	s.logger.Info("setting option 'CAN_RAW_ERR_FILTER'", "fd", s.fd, "mask", fmt.Sprintf("0x%08X", mask))
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, int(mask))
}

// Direct translation to struct can_frame, in host byte order
func toRaw(frame canerr.Frame) []byte {
	canFrame := &CANframe{
		id:   frame.ID,
		dlc:  frame.DLC,
		pad:  frame.Flags,
		data: frame.Data,
	}
	raw := *(*[SocketCANFrameSize]byte)(unsafe.Pointer(canFrame))
	return raw[:]
}

func fromRaw(raw []byte) canerr.Frame {
	canFrame := (*CANframe)(unsafe.Pointer(&raw[0]))
	return canerr.Frame{ID: canFrame.id, DLC: canFrame.dlc, Flags: canFrame.pad, Data: canFrame.data}
}
