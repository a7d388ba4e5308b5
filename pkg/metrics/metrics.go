package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samsamfire/gocanerr/pkg/errframe"
	"github.com/samsamfire/gocanerr/pkg/monitor"
)

const namespace = "canerr"

// Collector counts reported error frames per channel and class.
// It implements [monitor.Sink].
type Collector struct {
	frames    *prometheus.CounterVec
	classes   *prometheus.CounterVec
	txCounter *prometheus.GaugeVec
	rxCounter *prometheus.GaugeVec
	lastSeen  *prometheus.GaugeVec
}

func NewCollector() *Collector {
	return &Collector{
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "frames_total",
				Help:      "Total error frames reported.",
			},
			[]string{"channel"},
		),
		classes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "class_total",
				Help:      "Error frames reported per error class.",
			},
			[]string{"channel", "class"},
		),
		txCounter: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "controller",
				Name:      "tx_error_counter",
				Help:      "Last TX error counter reported by the controller.",
			},
			[]string{"channel"},
		),
		rxCounter: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "controller",
				Name:      "rx_error_counter",
				Help:      "Last RX error counter reported by the controller.",
			},
			[]string{"channel"},
		),
		lastSeen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "last_frame_timestamp_seconds",
				Help:      "Unix time of the last reported error frame.",
			},
			[]string{"channel"},
		),
	}
}

// Register adds all the collector metrics to reg
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{c.frames, c.classes, c.txCounter, c.rxCounter, c.lastSeen} {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Report implements [monitor.Sink]
func (c *Collector) Report(report monitor.Report) error {
	desc := report.Descriptor
	c.frames.WithLabelValues(report.Channel).Inc()
	for _, entry := range errframe.Classes() {
		if desc.Has(entry.Class) {
			c.classes.WithLabelValues(report.Channel, ClassLabel(entry)).Inc()
		}
	}
	if desc.Has(errframe.ClassCounters) {
		c.txCounter.WithLabelValues(report.Channel).Set(float64(desc.Data[errframe.ByteTxCounter]))
		c.rxCounter.WithLabelValues(report.Channel).Set(float64(desc.Data[errframe.ByteRxCounter]))
	}
	if !report.Time.IsZero() {
		c.lastSeen.WithLabelValues(report.Channel).Set(float64(report.Time.UnixNano()) / 1e9)
	}
	return nil
}

// ClassLabel is the metric label of a class e.g. "busoff" or "lostarbit"
func ClassLabel(entry errframe.ClassEntry) string {
	return strings.ToLower(strings.TrimPrefix(entry.Ignore, "Ignore"))
}
