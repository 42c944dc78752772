package replication

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeReplica accepts a single connection and collects everything written
// to it.
type fakeReplica struct {
	ln   net.Listener
	got  chan []byte
	port int
}

func startFakeReplica(t *testing.T) *fakeReplica {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	f := &fakeReplica{
		ln:   ln,
		got:  make(chan []byte, 16),
		port: ln.Addr().(*net.TCPAddr).Port,
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				f.got <- data
			}
			if err != nil {
				return
			}
		}
	}()

	return f
}

func TestAddAndReplicate(t *testing.T) {
	replica := startFakeReplica(t)
	m := NewManager(zap.NewNop())
	defer m.Close()

	require.NoError(t, m.Add("127.0.0.1", replica.port))
	assert.Equal(t, 1, m.Connected())

	payload := []byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")
	m.Replicate(payload)

	select {
	case got := <-replica.got:
		assert.Equal(t, payload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("replica never received the command")
	}
}

func TestAddDuplicate(t *testing.T) {
	replica := startFakeReplica(t)
	m := NewManager(zap.NewNop())
	defer m.Close()

	require.NoError(t, m.Add("127.0.0.1", replica.port))
	assert.Error(t, m.Add("127.0.0.1", replica.port))
	assert.Equal(t, 1, m.Connected())
}

func TestAddUnreachable(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Close()

	// A port nothing listens on: grab one and close it first.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	assert.Error(t, m.Add("127.0.0.1", port))
	assert.Equal(t, 0, m.Connected())
}

func TestRemove(t *testing.T) {
	replica := startFakeReplica(t)
	m := NewManager(zap.NewNop())
	defer m.Close()

	require.NoError(t, m.Add("127.0.0.1", replica.port))
	m.Remove("127.0.0.1", replica.port)
	assert.Equal(t, 0, m.Connected())

	// Removing again is a harmless no-op.
	m.Remove("127.0.0.1", replica.port)
}

// A replica whose connection died is marked disconnected after the failed
// send and never retried.
func TestFailedSendDisconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	m := NewManager(zap.NewNop())
	defer m.Close()
	require.NoError(t, m.Add("127.0.0.1", port))

	conn := <-accepted
	// Kill the replica side hard so pending writes surface as errors.
	conn.(*net.TCPConn).SetLinger(0) //nolint:errcheck
	conn.Close()

	payload := []byte("*1\r\n$4\r\nPING\r\n")
	deadline := time.After(5 * time.Second)
	for m.Connected() > 0 {
		select {
		case <-deadline:
			t.Fatal("manager never marked the dead replica disconnected")
		default:
			m.Replicate(payload)
			time.Sleep(10 * time.Millisecond)
		}
	}
}
