package socketcanv3

import (
	"context"
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

// Raw SocketCAN bus reading frames in batches with recvmmsg.
// Meant for buses flooded with error frames e.g. when monitoring BusError.

func init() {
	can.RegisterInterface("socketcanv3", NewBus)
}

const (
	DefaultRcvTimeout = 100 * time.Millisecond

	canFrameSize = 16
	// The maximum number of CAN frames to read at once (batch size)
	msgBatchSize = 64
)

// CANFrame matches the layout of struct can_frame
type CANFrame struct {
	ID    uint32
	Len   uint8
	Flags uint8
	_     [2]uint8 // Padding
	Data  [8]uint8
}

// Mmsghdr matches struct mmsghdr, missing from golang.org/x/sys/unix.
// Trailing padding on 64 bit platforms comes from the alignment of Hdr
type Mmsghdr struct {
	Hdr unix.Msghdr
	Len uint32
}

type Bus struct {
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
func NewBus(channel string) (canerr.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, fmt.Errorf("error setting CAN interface name %v : %w", channel, err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket : %w", err)
	}
	// recvmmsg only checks its own timeout after a frame is received
	tv := unix.NsecToTimeval(DefaultRcvTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set read timeout : %w", err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error in socket bind : %w", err)
	}
	return &Bus{fd: fd, logger: slog.Default()}, nil
}

func (b *Bus) SetLogger(logger *slog.Logger) {
	b.logger = logger
}

// "Connect" implementation of Bus interface
func (b *Bus) Connect(...any) error {
	if err := unix.SetNonblock(b.fd, false); err != nil {
		return fmt.Errorf("failed to set blocking mode : %w", err)
	}
	var ctx context.Context
	ctx, b.cancel = context.WithCancel(context.Background())
	b.mu.Lock()
	b.done = make(chan struct{})
	b.err = nil
	done := b.done
	b.mu.Unlock()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := b.processIncoming(ctx)
		b.mu.Lock()
		b.err = err
		close(done)
		b.mu.Unlock()
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (b *Bus) Disconnect() error {
	if b.cancel != nil {
		b.cancel()
		b.wg.Wait()
	}
	return unix.Close(b.fd)
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame canerr.Frame) error {
	canFrame := CANFrame{ID: frame.ID, Len: frame.DLC, Flags: frame.Flags, Data: frame.Data}
	rawData := (*(*[canFrameSize]byte)(unsafe.Pointer(&canFrame)))[:]
	n, err := unix.Write(b.fd, rawData)
	if err != nil {
		return fmt.Errorf("error writing to socket : %w", err)
	}
	if n != canFrameSize {
		return fmt.Errorf("error writing to socket : %w", canerr.ErrIncompleteFrame)
	}
	return nil
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(rxCallback canerr.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rxCallback = rxCallback
	return nil
}

// Closed when reception has stopped, nil before [Bus.Connect]
func (b *Bus) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *Bus) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Bus) processIncoming(ctx context.Context) error {
	frames := make([]CANFrame, msgBatchSize)
	iovecs := make([]unix.Iovec, msgBatchSize)
	mmsgs := make([]Mmsghdr, msgBatchSize)

	for i := 0; i < msgBatchSize; i++ {
		iovecs[i].Base = (*byte)(unsafe.Pointer(&frames[i]))
		iovecs[i].SetLen(canFrameSize)
		mmsgs[i].Hdr.Iov = &iovecs[i]
		mmsgs[i].Hdr.Iovlen = 1
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("exiting CAN bus reception, closed")
			return nil
		default:
			ts := unix.Timespec{
				Nsec: 10_000_000, // 10ms
			}
			n, _, errno := unix.Syscall6(
				unix.SYS_RECVMMSG,
				uintptr(b.fd),
				uintptr(unsafe.Pointer(&mmsgs[0])),
				uintptr(msgBatchSize),
				unix.MSG_WAITFORONE,
				uintptr(unsafe.Pointer(&ts)),
				0,
			)
			if errno != 0 {
				if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK || errno == unix.EINTR {
					continue
				}
				b.logger.Error("exiting CAN bus reception", "err", errno)
				return fmt.Errorf("error reading CAN frames : %w", errno)
			}

			b.mu.Lock()
			callback := b.rxCallback
			b.mu.Unlock()
			for i := 0; i < int(n); i++ {
				if mmsgs[i].Len < canFrameSize {
					b.logger.Warn("skipping incomplete CAN frame", "length", mmsgs[i].Len)
					continue
				}
				frame := frames[i]
				if callback != nil {
					callback.Handle(canerr.Frame{ID: frame.ID, DLC: frame.Len, Flags: frame.Flags, Data: frame.Data})
				}
			}
		}
	}
}

// Enable own reception on the bus. CAN be useful when testing for example
func (b *Bus) SetReceiveOwn(enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	b.logger.Info("setting option 'CAN_RAW_RECV_OWN_MSGS'", "fd", b.fd, "enabled", enabled)
	return unix.SetsockoptInt(b.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, enabledInt)
}

// Add some filtering to CAN bus
func (b *Bus) SetFilters(filters []unix.CanFilter) error {
	b.logger.Info("setting option 'CAN_RAW_FILTER'", "fd", b.fd, "filters", filters)
	return unix.SetsockoptCanRawFilter(b.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
}

// Select which error classes are reported as error frames
func (b *Bus) SetErrorFilter(mask uint32) error {
	b.logger.Info("setting option 'CAN_RAW_ERR_FILTER'", "fd", b.fd, "mask", fmt.Sprintf("0x%08X", mask))
	return unix.SetsockoptInt(b.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, int(mask))
}
