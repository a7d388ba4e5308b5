package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	canerr "github.com/samsamfire/gocanerr"
	"github.com/samsamfire/gocanerr/pkg/errframe"
)

// Monitor listens to a CAN bus, decodes the error frames
// passing its filter and reports them to its sinks.
type Monitor struct {
	mu      sync.Mutex
	logger  *slog.Logger
	channel string
	filter  Filter
	sinks   []Sink
	now     func() time.Time
	counts  map[errframe.ErrorClass]uint64
	total   uint64
}

func NewMonitor(logger *slog.Logger, channel string, filter Filter, sinks ...Sink) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:  logger.With("service", "[MON]", "channel", channel),
		channel: channel,
		filter:  filter,
		sinks:   sinks,
		now:     time.Now,
		counts:  make(map[errframe.ErrorClass]uint64),
	}
}

// AddSink registers an additional report destination
func (m *Monitor) AddSink(sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

// Handle implements [canerr.FrameListener].
// Data and remote frames are dropped, as are error frames
// whose classes are all filtered out. Backends that cannot
// filter in the kernel rely on the latter.
func (m *Monitor) Handle(frame canerr.Frame) {
	desc, err := errframe.FromFrame(frame)
	if err != nil {
		m.logger.Debug("dropping frame", "id", fmt.Sprintf("x%x", frame.ID), "err", err)
		return
	}
	if !m.filter.Accepts(desc.Class) {
		return
	}

	m.mu.Lock()
	report := Report{
		Time:        m.now(),
		Channel:     m.channel,
		Descriptor:  desc,
		Description: errframe.Decode(desc),
	}
	m.total++
	for _, entry := range errframe.Classes() {
		if desc.Has(entry.Class) {
			m.counts[entry.Class]++
		}
	}
	sinks := m.sinks
	m.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Report(report); err != nil {
			m.logger.Warn("failed to report error frame", "description", report.Description.String(), "err", err)
		}
	}
}

// Count returns how many reported frames carried the given class.
// Count(0) returns the total number of reported frames
func (m *Monitor) Count(class errframe.ErrorClass) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if class == 0 {
		return m.total
	}
	return m.counts[class]
}

// Start restricts the bus to the monitored error classes
// and subscribes to it
func (m *Monitor) Start(bus canerr.Bus) error {
	if filterer, ok := bus.(canerr.ErrorFilterer); ok {
		if err := filterer.SetErrorFilter(m.filter.Mask()); err != nil {
			return fmt.Errorf("setting error filter: %w", err)
		}
	} else {
		m.logger.Warn("bus cannot filter error frames, filtering in user space")
	}
	return bus.Subscribe(m)
}

// Run starts monitoring and blocks until the context is cancelled
// or the bus stops receiving. A stopped bus returns its reception error
func (m *Monitor) Run(ctx context.Context, bus canerr.Bus) error {
	if err := m.Start(bus); err != nil {
		return err
	}
	var stopped <-chan struct{}
	terminator, hasTerminator := bus.(canerr.Terminator)
	if hasTerminator {
		stopped = terminator.Done()
	}
	select {
	case <-ctx.Done():
		m.logger.Info("monitoring stopped", "frames", m.Count(0))
		return nil
	case <-stopped:
		err := terminator.Err()
		m.logger.Error("bus stopped receiving", "err", err)
		return err
	}
}
