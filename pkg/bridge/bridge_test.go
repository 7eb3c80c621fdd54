package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/protocol"
)

type fakeConn struct {
	mu      sync.Mutex
	reads   chan []byte
	written []*protocol.Message
	closed  bool
}

func newFakeConn() *fakeConn { return &fakeConn{reads: make(chan []byte, 8)} }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	b, ok := <-f.reads
	if !ok {
		return 0, nil, errors.New("closed")
	}
	return 1, b, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.written = append(f.written, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.reads)
	}
	return nil
}

func (f *fakeConn) push(t *testing.T, typ protocol.MessageType, data any) {
	t.Helper()
	msg, err := protocol.NewMessage(typ, data)
	require.NoError(t, err)
	raw, err := msg.Bytes()
	require.NoError(t, err)
	f.reads <- raw
}

func (f *fakeConn) writtenTypes() []protocol.MessageType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.MessageType
	for _, m := range f.written {
		out = append(out, m.Type)
	}
	return out
}

func serve(t *testing.T, b *Bridge) (*fakeConn, chan struct{}) {
	t.Helper()
	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		b.Serve(conn)
		close(done)
	}()
	require.Eventually(t, b.Connected, time.Second, 5*time.Millisecond)
	return conn, done
}

func TestSendWithoutBrowser(t *testing.T) {
	b := New(log.Discard())
	assert.False(t, b.Connected())
	assert.ErrorIs(t, b.Send(protocol.TypeSTTStop, nil), ErrNotConnected)
}

func TestDispatchAndSend(t *testing.T) {
	b := New(log.Discard())
	results := make(chan *protocol.STTResult, 1)
	b.Handle(protocol.TypeSTTResult, func(msg *protocol.Message) {
		r, err := msg.GetSTTResult()
		require.NoError(t, err)
		results <- r
	})

	conn, _ := serve(t, b)
	conn.push(t, protocol.TypeCaps, protocol.Caps{Recognition: true, Synthesis: true})
	conn.push(t, protocol.TypeSTTResult, protocol.STTResult{Final: "नमस्ते", IsFinal: true})

	select {
	case r := <-results:
		assert.Equal(t, "नमस्ते", r.Final)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	assert.True(t, b.Caps().Recognition)

	require.NoError(t, b.Send(protocol.TypeSTTStop, nil))
	assert.Eventually(t, func() bool {
		types := conn.writtenTypes()
		return len(types) == 1 && types[0] == protocol.TypeSTTStop
	}, time.Second, 5*time.Millisecond)

	stats := b.GetStats()
	assert.True(t, stats.Connected)
	assert.Equal(t, uint64(2), stats.MessagesReceived)
	assert.Equal(t, uint64(1), stats.MessagesSent)
}

func TestPingAnsweredDirectly(t *testing.T) {
	b := New(log.Discard())
	conn, _ := serve(t, b)
	conn.push(t, protocol.TypePing, protocol.PingData{ID: "x", Timestamp: 1})

	assert.Eventually(t, func() bool {
		types := conn.writtenTypes()
		return len(types) == 1 && types[0] == protocol.TypePong
	}, time.Second, 5*time.Millisecond)
}

func TestDisconnectNotifiesHandlers(t *testing.T) {
	b := New(log.Discard())
	gone := make(chan struct{}, 1)
	b.Handle(TypeDisconnected, func(*protocol.Message) { gone <- struct{}{} })

	conn, done := serve(t, b)
	conn.Close()
	<-done

	select {
	case <-gone:
	case <-time.After(time.Second):
		t.Fatal("disconnect not dispatched")
	}
	assert.False(t, b.Connected())
}

func TestNewConnectionReplacesOld(t *testing.T) {
	b := New(log.Discard())
	disconnects := 0
	var mu sync.Mutex
	b.Handle(TypeDisconnected, func(*protocol.Message) {
		mu.Lock()
		disconnects++
		mu.Unlock()
	})

	_, firstDone := serve(t, b)
	second, _ := serve(t, b)

	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("first connection not closed")
	}
	assert.True(t, b.Connected())

	mu.Lock()
	assert.Zero(t, disconnects)
	mu.Unlock()

	require.NoError(t, b.Send(protocol.TypeTTSStop, nil))
	assert.Eventually(t, func() bool { return len(second.writtenTypes()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestMockTransport(t *testing.T) {
	m := NewMock()
	var got string
	m.Handle(protocol.TypeTTSEnded, func(msg *protocol.Message) {
		ev, _ := msg.GetTTSEvent()
		got = ev.ID
	})
	m.Deliver(protocol.TypeTTSEnded, protocol.TTSEvent{ID: "u1"})
	assert.Equal(t, "u1", got)

	require.NoError(t, m.Send(protocol.TypeTTSSpeak, protocol.TTSSpeak{ID: "u2"}))
	assert.Equal(t, []protocol.MessageType{protocol.TypeTTSSpeak}, m.SentTypes())
	assert.NotNil(t, m.Last(protocol.TypeTTSSpeak))

	m.SetConnected(false)
	assert.ErrorIs(t, m.Send(protocol.TypeTTSStop, nil), ErrNotConnected)
}
