// Package replication re-emits journaled write commands to downstream
// replica servers in their wire form.
package replication

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Replica is one outbound primary→replica connection
type Replica struct {
	Host      string
	Port      int
	conn      net.Conn
	connected bool
}

// Manager owns the replica list. Replicate holds the list mutex across all
// sends, so replicas observe writes in linearization order.
type Manager struct {
	mu       sync.Mutex
	replicas []*Replica
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Add dials the replica with a blocking TCP connect and records it.
// Duplicate endpoints are rejected.
func (m *Manager) Add(host string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.replicas {
		if r.Host == host && r.Port == port {
			return fmt.Errorf("replica %s:%d already registered", host, port)
		}
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to replica %s: %w", addr, err)
	}

	m.replicas = append(m.replicas, &Replica{
		Host:      host,
		Port:      port,
		conn:      conn,
		connected: true,
	})
	m.logger.Info("replica connected", zap.String("addr", addr))
	return nil
}

// Remove closes and forgets the replica at the given endpoint
func (m *Manager) Remove(host string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.replicas {
		if r.Host == host && r.Port == port {
			if r.connected {
				r.conn.Close() //nolint:errcheck
			}
			m.replicas = append(m.replicas[:i], m.replicas[i+1:]...)
			m.logger.Info("replica removed",
				zap.String("host", host), zap.Int("port", port))
			return
		}
	}
}

// Replicate writes the serialized command to every connected replica. A
// short or failed write marks that replica disconnected and closes its
// socket; no acknowledgement is awaited and no reconnect is attempted.
func (m *Manager) Replicate(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.replicas {
		if !r.connected {
			continue
		}

		n, err := r.conn.Write(payload)
		if err != nil || n != len(payload) {
			m.logger.Warn("replica send failed, disconnecting",
				zap.String("host", r.Host), zap.Int("port", r.Port), zap.Error(err))
			r.conn.Close() //nolint:errcheck
			r.connected = false
		}
	}
}

// Connected returns the number of currently connected replicas
func (m *Manager) Connected() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, r := range m.replicas {
		if r.connected {
			count++
		}
	}
	return count
}

// Close tears down every replica connection
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.replicas {
		if r.connected {
			r.conn.Close() //nolint:errcheck
			r.connected = false
		}
	}
	m.replicas = nil
}
