package virtual

import (
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"sync"
)

// Broker is a minimal virtual CAN server.
// Every packet received from a client is forwarded to all the other clients
type Broker struct {
	listener net.Listener
	logger   *slog.Logger
	mu       sync.Mutex
	clients  map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// Listen starts a broker on address e.g. "localhost:18888" or "127.0.0.1:0"
func Listen(address string, logger *slog.Logger) (*Broker, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		listener: listener,
		logger:   logger.With("service", "[VCAN]"),
		clients:  make(map[net.Conn]struct{}),
	}
	b.wg.Add(1)
	go b.serve()
	return b, nil
}

// Addr is the address clients connect to, the channel of a virtual bus
func (b *Broker) Addr() string {
	return b.listener.Addr().String()
}

// Clients returns the number of connected clients
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broker) serve() {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			conn.Close()
			return
		}
		b.clients[conn] = struct{}{}
		b.mu.Unlock()
		b.logger.Debug("client connected", "remote", conn.RemoteAddr().String())
		b.wg.Add(1)
		go b.relay(conn)
	}
}

func (b *Broker) relay(from net.Conn) {
	defer b.wg.Done()
	defer func() {
		b.mu.Lock()
		delete(b.clients, from)
		b.mu.Unlock()
		from.Close()
	}()
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(from, header); err != nil {
			return
		}
		payload := make([]byte, binary.BigEndian.Uint32(header))
		if _, err := io.ReadFull(from, payload); err != nil {
			return
		}
		packet := append(append([]byte{}, header...), payload...)
		b.mu.Lock()
		for client := range b.clients {
			if client == from {
				continue
			}
			if _, err := client.Write(packet); err != nil {
				b.logger.Warn("failed to forward frame", "remote", client.RemoteAddr().String(), "err", err)
			}
		}
		b.mu.Unlock()
	}
}

// Close stops accepting clients and disconnects the connected ones
func (b *Broker) Close() error {
	err := b.listener.Close()
	b.mu.Lock()
	b.closed = true
	for client := range b.clients {
		client.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
	return err
}
