package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samsamfire/gocanerr/pkg/errframe"
	"github.com/samsamfire/gocanerr/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats map[errframe.ErrorClass]uint64

func (s fixedStats) Count(class errframe.ErrorClass) uint64 { return s[class] }

func report(t *testing.T, tokens ...string) monitor.Report {
	t.Helper()
	desc, err := errframe.EncodeArgs(tokens)
	require.Nil(t, err)
	return monitor.Report{
		Time:        time.Unix(1700000000, 0),
		Channel:     "can0",
		Descriptor:  desc,
		Description: errframe.Decode(desc),
	}
}

func TestClassLabel(t *testing.T) {
	labels := []string{}
	for _, entry := range errframe.Classes() {
		labels = append(labels, ClassLabel(entry))
	}
	assert.Equal(t, []string{
		"txtimeout", "lostarbit", "noack", "busoff", "buserror",
		"restarted", "counters", "controller", "protocol", "transceiver",
	}, labels)
}

func TestCollectorReport(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewRegistry()
	require.Nil(t, c.Register(reg))

	assert.Nil(t, c.Report(report(t, "BusOff", "NoAck")))
	assert.Nil(t, c.Report(report(t, "BusOff", "TxCount=60", "RxCount=7F")))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.frames.WithLabelValues("can0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.classes.WithLabelValues("can0", "busoff")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.classes.WithLabelValues("can0", "noack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.classes.WithLabelValues("can0", "counters")))
	assert.Equal(t, 96.0, testutil.ToFloat64(c.txCounter.WithLabelValues("can0")))
	assert.Equal(t, 127.0, testutil.ToFloat64(c.rxCounter.WithLabelValues("can0")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(c.lastSeen.WithLabelValues("can0")))
}

func TestCollectorRegisterTwice(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewRegistry()
	require.Nil(t, c.Register(reg))
	assert.NotNil(t, c.Register(reg))
}

func TestServerRoutes(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewRegistry()
	require.Nil(t, c.Register(reg))
	require.Nil(t, c.Report(report(t, "BusError")))

	stats := fixedStats{0: 3, errframe.ClassBusError: 2, errframe.ClassBusOff: 1}
	server := NewServer(nil, "can0", reg, stats)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		body := map[string]any{}
		require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "can0", body["channel"])
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `canerr_monitor_class_total{channel="can0",class="buserror"} 1`)
	})

	t.Run("stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		body := struct {
			Channel string            `json:"channel"`
			Total   uint64            `json:"total"`
			Classes map[string]uint64 `json:"classes"`
		}{}
		require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, uint64(3), body.Total)
		assert.Equal(t, uint64(2), body.Classes["buserror"])
		assert.Equal(t, uint64(1), body.Classes["busoff"])
		assert.Equal(t, uint64(0), body.Classes["noack"])
		assert.Len(t, body.Classes, len(errframe.Classes()))
	})

	t.Run("no stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewServer(nil, "can0", reg, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestServeUntilCancelled(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	server := NewServer(nil, "vcan0", prometheus.NewRegistry(), fixedStats{})

	ctx, cancel := context.WithCancel(context.Background())
	exit := make(chan error, 1)
	go func() { exit <- server.ServeListener(ctx, listener) }()

	var body string
	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		body = string(raw)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, strings.Contains(body, `"vcan0"`))

	cancel()
	select {
	case err := <-exit:
		assert.Nil(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
