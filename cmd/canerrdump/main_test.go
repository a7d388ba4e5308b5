package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samsamfire/gocanerr/pkg/can/virtual"
	"github.com/samsamfire/gocanerr/pkg/errframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestUsage(t *testing.T) {
	out := &bytes.Buffer{}
	assert.Equal(t, 0, run(context.Background(), nil, out))
	assert.True(t, strings.HasPrefix(out.String(), "CAN Sockets Error Messages Dumper\n"))
	assert.Contains(t, out.String(), "Usage: canerrdump")
	for _, entry := range errframe.Classes() {
		assert.Contains(t, out.String(), entry.Ignore)
	}
	assert.Contains(t, out.String(), "-mqtt")
}

func TestInvalidOption(t *testing.T) {
	out := &bytes.Buffer{}
	code := run(context.Background(), []string{"-b", "virtualcan", "vcan0", "IgnoreBusOff", "IgnoreSmoke"}, out)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Error: Invalid option: IgnoreSmoke\n")
	assert.NotContains(t, out.String(), "Listening")
}

func TestInvalidOptionExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canerr.toml")
	require.Nil(t, os.WriteFile(path, []byte("[cli]\ninvalid_option_exit_code = 3\n"), 0o644))
	out := &bytes.Buffer{}
	code := run(context.Background(), []string{"-c", path, "vcan0", "Smoke"}, out)
	assert.Equal(t, 3, code)
}

func TestShowBitsUnsupportedBackend(t *testing.T) {
	out := &bytes.Buffer{}
	code := run(context.Background(), []string{"-b", "carrierpigeon", "vcan0", "IgnoreBusError", "showbits"}, out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Error Mask = 00111111111111111111111101111111\n")
}

func TestDumpVirtualBus(t *testing.T) {
	broker, err := virtual.Listen("127.0.0.1:0", nil)
	require.Nil(t, err)
	defer broker.Close()

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exit := make(chan int, 1)
	go func() {
		exit <- run(ctx, []string{"-b", "virtualcan", broker.Addr(), "IgnoreBusError"}, out)
	}()
	assert.Eventually(t, func() bool { return broker.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	sender, err := virtual.NewVirtualCanBus(broker.Addr())
	require.Nil(t, err)
	require.Nil(t, sender.Connect())
	defer sender.Disconnect()
	assert.Eventually(t, func() bool { return broker.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	ignored, err := errframe.EncodeArgs([]string{"BusError"})
	require.Nil(t, err)
	dumped, err := errframe.EncodeArgs([]string{"LostArBit=09", "Data4=07", "BusOff"})
	require.Nil(t, err)
	assert.Nil(t, sender.Send(ignored.Frame()))
	assert.Nil(t, sender.Send(dumped.Frame()))

	expected := "0x052 [8] 09 00 00 00 07 00 00 00  ERR=LostArBit09,BusOff,Trans(CanHiShortToGND)\n"
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), expected) }, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, out.String(), "ERR=BusError")
	assert.Contains(t, out.String(), "Listening CAN bus "+broker.Addr()+" for errors...\n")

	cancel()
	select {
	case code := <-exit:
		assert.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("dumper did not stop")
	}
}

func TestDumpMetrics(t *testing.T) {
	broker, err := virtual.Listen("127.0.0.1:0", nil)
	require.Nil(t, err)
	defer broker.Close()

	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	addr := free.Addr().String()
	require.Nil(t, free.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exit := make(chan int, 1)
	go func() {
		exit <- run(ctx, []string{"-b", "virtualcan", "-metrics", addr, broker.Addr()}, &syncBuffer{})
	}()
	assert.Eventually(t, func() bool { return broker.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	sender, err := virtual.NewVirtualCanBus(broker.Addr())
	require.Nil(t, err)
	require.Nil(t, sender.Connect())
	defer sender.Disconnect()
	assert.Eventually(t, func() bool { return broker.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	desc, err := errframe.EncodeArgs([]string{"BusOff"})
	require.Nil(t, err)
	require.Nil(t, sender.Send(desc.Frame()))

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `canerr_monitor_class_total{channel="`+broker.Addr()+`",class="busoff"} 1`)
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case code := <-exit:
		assert.Equal(t, 0, code)
	case <-time.After(3 * time.Second):
		t.Fatal("dumper did not stop")
	}
}
