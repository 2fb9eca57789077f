package ipc

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerClientRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")

	var mu sync.Mutex
	var received []Envelope
	srv, err := Listen(sockPath, func(conn *Conn, env Envelope) {
		mu.Lock()
		received = append(received, env)
		mu.Unlock()
		conn.Send(Envelope{Type: TypeVisionGlanceResult, Source: SourceVision})
	})
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	client, err := Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(Envelope{Type: TypeManualWake, Source: SourceFrontPanel}))

	reply, err := client.Recv()
	require.NoError(t, err)
	assert.Equal(t, TypeVisionGlanceResult, reply.Type)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, TypeManualWake, received[0].Type)
}

type countingMetrics struct {
	mu    sync.Mutex
	count int
}

func (m *countingMetrics) IncIPCOversizeFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
}

func (m *countingMetrics) value() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func TestServerResyncsAfterOversizeFrameAndCountsIt(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "oversize.sock")

	var mu sync.Mutex
	var received []Envelope
	srv, err := Listen(sockPath, func(conn *Conn, env Envelope) {
		mu.Lock()
		received = append(received, env)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer srv.Close()

	metrics := &countingMetrics{}
	srv.SetMetrics(metrics)
	go srv.Serve()

	client, err := Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	oversize := append([]byte(`{"type":"`), make([]byte, MaxFrameBytes+100)...)
	oversize = append(oversize, []byte(`","ts":0}`+"\n")...)
	_, err = client.conn.Write(oversize)
	require.NoError(t, err)

	require.NoError(t, client.Send(Envelope{Type: TypeCancel, Source: SourceFrontPanel}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond, "connection must resync and keep delivering frames after an oversize one")

	assert.Equal(t, 1, metrics.value())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, TypeCancel, received[0].Type)
}

func TestListenRemovesStaleSocketFile(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "stale.sock")

	first, err := Listen(sockPath, func(*Conn, Envelope) {})
	require.NoError(t, err)
	// Simulate an unclean shutdown: the listener's fd goes away but the
	// socket inode is left behind on disk.
	first.ln.Close()

	second, err := Listen(sockPath, func(*Conn, Envelope) {})
	require.NoError(t, err)
	defer second.Close()
}
