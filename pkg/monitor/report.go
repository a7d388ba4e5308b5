package monitor

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/samsamfire/gocanerr/pkg/errframe"
)

// Report is one decoded error frame
type Report struct {
	Time        time.Time
	Channel     string
	Descriptor  errframe.Descriptor
	Description errframe.Description
}

// Line is the candump like rendering of the report
func (r Report) Line() string {
	return errframe.Format(r.Descriptor)
}

// Replay returns the simulator options reproducing the reported frame
func (r Report) Replay() []string {
	return errframe.Options(r.Descriptor)
}

// Sink receives every report produced by a [Monitor]
type Sink interface {
	Report(report Report) error
}

// SinkFunc adapts a plain function to a [Sink]
type SinkFunc func(report Report) error

func (f SinkFunc) Report(report Report) error {
	return f(report)
}

// WriterSink prints one line per report
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Report(report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, report.Line())
	return err
}
