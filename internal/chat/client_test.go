package chat_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omochice/toy-line-chat/internal/chat"
	"github.com/omochice/toy-line-chat/internal/config"
	"github.com/omochice/toy-line-chat/internal/logger"
	"github.com/omochice/toy-line-chat/internal/mock"
	"github.com/omochice/toy-line-chat/internal/transport"
)

type recorder struct {
	mu      sync.Mutex
	notices []string
	frames  []string
	raws    [][]byte
}

func (r *recorder) Notice(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, fmt.Sprintf(format, args...))
}

func (r *recorder) Frame(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, line)
}

func (r *recorder) Raw(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raws = append(r.raws, append([]byte(nil), data...))
}

func (r *recorder) Frames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func (r *recorder) Raws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.raws)
}

func (r *recorder) Notices(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if strings.HasPrefix(notice, prefix) {
			n++
		}
	}
	return n
}

func testTimeouts() config.Timeouts {
	return config.Timeouts{
		Connect:        time.Second,
		Poll:           50 * time.Millisecond,
		ReconnectPause: 10 * time.Millisecond,
		ShutdownWait:   time.Second,
		ReadChunk:      4096,
	}
}

func startPeer(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	conns := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conns <- conn
		}
	}()

	return listener.Addr().String(), conns
}

func acceptPeer(t *testing.T, conns <-chan net.Conn) net.Conn {
	t.Helper()

	select {
	case conn := <-conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("peer did not accept a connection")
		return nil
	}
}

func newTCPClient(t *testing.T, address string) (*chat.Client, *recorder) {
	t.Helper()

	display := &recorder{}
	c := chat.New(address, transport.TCPDialer{}, display, logger.Nop(), testTimeouts())
	t.Cleanup(c.Stop)

	return c, display
}

// requireDisconnectedWithinPoll fails unless c reaches StateDisconnected within
// one poll interval plus scheduling slack.
func requireDisconnectedWithinPoll(t *testing.T, c *chat.Client) {
	t.Helper()

	require.Eventually(t, func() bool {
		return c.State() == chat.StateDisconnected
	}, testTimeouts().Poll+150*time.Millisecond, 5*time.Millisecond)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", chat.StateDisconnected.String())
	assert.Equal(t, "CONNECTING", chat.StateConnecting.String())
	assert.Equal(t, "CONNECTED", chat.StateConnected.String())
	assert.Equal(t, "UNKNOWN", chat.State(42).String())
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock.NewMockDialer(ctrl)
	display := &recorder{}

	c := chat.New("127.0.0.1:1", dialer, display, logger.Nop(), testTimeouts())

	err := c.Send("hello")

	assert.ErrorIs(t, err, chat.ErrNotConnected)
	assert.Equal(t, 1, display.Notices("Not connected to server"))
	assert.Equal(t, chat.StateDisconnected, c.State())
}

func TestClient_DisconnectIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := chat.New("127.0.0.1:1", mock.NewMockDialer(ctrl), &recorder{}, logger.Nop(), testTimeouts())

	c.Disconnect()
	c.Disconnect()

	assert.Equal(t, chat.StateDisconnected, c.State())
	assert.False(t, c.IsConnected())
}

func TestClient_ConnectFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		notice string
	}{
		{
			name:   "refused",
			err:    fmt.Errorf("%w: %w", transport.ErrConnectionRefused, syscall.ECONNREFUSED),
			notice: "Connection refused. Is the chat server running?",
		},
		{
			name:   "timeout",
			err:    fmt.Errorf("%w: %w", transport.ErrConnectTimeout, context.DeadlineExceeded),
			notice: "Connection timed out.",
		},
		{
			name:   "other",
			err:    fmt.Errorf("failed to connect to server: %w", syscall.EHOSTUNREACH),
			notice: "Connection error: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			dialer := mock.NewMockDialer(ctrl)
			dialer.EXPECT().Dial(gomock.Any(), "chat.example:56789").Return(nil, tt.err)
			display := &recorder{}

			c := chat.New("chat.example:56789", dialer, display, logger.Nop(), testTimeouts())

			err := c.Connect(context.Background())

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, display.Notices(tt.notice))
			assert.Equal(t, chat.StateDisconnected, c.State())
		})
	}
}

func TestClient_ConnectTwice(t *testing.T) {
	address, conns := startPeer(t)
	c, _ := newTCPClient(t, address)

	require.NoError(t, c.Connect(context.Background()))
	acceptPeer(t, conns)

	assert.ErrorIs(t, c.Connect(context.Background()), chat.ErrAlreadyConnected)
	assert.True(t, c.IsConnected())
}

func TestClient_ConnectAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := chat.New("127.0.0.1:1", mock.NewMockDialer(ctrl), &recorder{}, logger.Nop(), testTimeouts())

	c.Stop()

	assert.ErrorIs(t, c.Connect(context.Background()), chat.ErrStopped)
	assert.False(t, c.Running())
}

func TestClient_ConnectRefusedByRealDialer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	c, display := newTCPClient(t, address)

	err = c.Connect(context.Background())

	assert.ErrorIs(t, err, transport.ErrConnectionRefused)
	assert.Equal(t, 1, display.Notices("Connection refused"))
	assert.Equal(t, chat.StateDisconnected, c.State())
}

func TestClient_SendNormalizesTerminator(t *testing.T) {
	address, conns := startPeer(t)
	c, display := newTCPClient(t, address)

	require.NoError(t, c.Connect(context.Background()))
	peer := acceptPeer(t, conns)
	assert.Equal(t, 1, display.Notices("Connected to chat server at "+address))

	require.NoError(t, c.Send("hi"))
	require.NoError(t, c.Send("hi\n"))
	require.NoError(t, c.Send(" "))

	want := "hi\nhi\n \n"
	got := make([]byte, len(want))
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := io.ReadFull(peer, got)
	require.NoError(t, err)

	assert.Equal(t, want, string(got))
}

func TestClient_ReassemblesFramesAcrossReads(t *testing.T) {
	address, conns := startPeer(t)
	c, display := newTCPClient(t, address)

	require.NoError(t, c.Connect(context.Background()))
	peer := acceptPeer(t, conns)

	for _, part := range []string{"hel", "lo\nwor", "ld\r\n", "\n  \n", "caf\xc3\xa9\n"} {
		_, err := peer.Write([]byte(part))
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(display.Frames()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"hello", "world", "café"}, display.Frames())
}

func TestClient_InvalidChunkIsReportedAndDropped(t *testing.T) {
	address, conns := startPeer(t)
	c, display := newTCPClient(t, address)

	require.NoError(t, c.Connect(context.Background()))
	peer := acceptPeer(t, conns)

	_, err := peer.Write([]byte{0xff, 0xfe, '\n'})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = peer.Write([]byte("still here\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(display.Frames()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, display.Raws())
	assert.Equal(t, []string{"still here"}, display.Frames())
	assert.True(t, c.IsConnected())
}

func TestClient_PeerCloseDisconnectsOnce(t *testing.T) {
	address, conns := startPeer(t)
	c, display := newTCPClient(t, address)

	require.NoError(t, c.Connect(context.Background()))
	peer := acceptPeer(t, conns)

	require.NoError(t, peer.Close())

	requireDisconnectedWithinPoll(t, c)
	require.Eventually(t, func() bool {
		return display.Notices("Listener stopped") == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, display.Notices("Disconnected: Server closed connection"))
	assert.Equal(t, 1, display.Notices("Disconnected:"))
	assert.ErrorIs(t, c.Send("anyone?"), chat.ErrNotConnected)
}

func TestClient_ReconnectDisplaysFramesOnce(t *testing.T) {
	address, conns := startPeer(t)
	c, display := newTCPClient(t, address)

	require.NoError(t, c.Connect(context.Background()))
	first := acceptPeer(t, conns)

	require.NoError(t, c.Reconnect(context.Background()))
	second := acceptPeer(t, conns)

	// The first connection was closed by the client.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := first.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	_, err = second.Write([]byte("ping\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(display.Frames()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, []string{"ping"}, display.Frames())
	assert.Equal(t, 2, display.Notices("Connected to chat server"))
	assert.Equal(t, 0, display.Notices("Disconnected:"), "an explicit reconnect is not a connection loss")
	assert.True(t, c.IsConnected())
}

func TestClient_StopWaitsForReader(t *testing.T) {
	address, conns := startPeer(t)
	c, display := newTCPClient(t, address)

	require.NoError(t, c.Connect(context.Background()))
	acceptPeer(t, conns)

	start := time.Now()
	c.Stop()

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, display.Notices("Listener stopped"))
	assert.Equal(t, chat.StateDisconnected, c.State())
	assert.False(t, c.Running())
}

func TestClient_BrokenPipeDisconnects(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock.NewMockDialer(ctrl)
	conn := mock.NewMockConn(ctrl)
	display := &recorder{}

	dialer.EXPECT().Dial(gomock.Any(), "chat.example:56789").Return(conn, nil)
	conn.EXPECT().RemoteAddr().Return("chat.example:56789").AnyTimes()
	conn.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).AnyTimes()
	conn.EXPECT().Read(gomock.Any()).DoAndReturn(func([]byte) (int, error) {
		time.Sleep(5 * time.Millisecond)
		return 0, os.ErrDeadlineExceeded
	}).AnyTimes()
	conn.EXPECT().Write([]byte("hello\n")).Return(0, syscall.EPIPE)
	conn.EXPECT().Shutdown().Return(nil)
	conn.EXPECT().Close().Return(nil)

	c := chat.New("chat.example:56789", dialer, display, logger.Nop(), testTimeouts())
	require.NoError(t, c.Connect(context.Background()))

	err := c.Send("hello")

	assert.ErrorIs(t, err, chat.ErrBrokenPipe)
	assert.ErrorIs(t, err, syscall.EPIPE)
	assert.Equal(t, 1, display.Notices("Disconnected: Broken pipe"))
	assert.Equal(t, chat.StateDisconnected, c.State())

	c.Stop()
	assert.Equal(t, 1, display.Notices("Listener stopped"))
}

func TestClient_PartialWritesAreCompleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock.NewMockDialer(ctrl)
	conn := mock.NewMockConn(ctrl)

	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(conn, nil)
	conn.EXPECT().RemoteAddr().Return("peer").AnyTimes()
	conn.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).AnyTimes()
	conn.EXPECT().Read(gomock.Any()).DoAndReturn(func([]byte) (int, error) {
		time.Sleep(5 * time.Millisecond)
		return 0, os.ErrDeadlineExceeded
	}).AnyTimes()

	var written []byte
	gomock.InOrder(
		conn.EXPECT().Write([]byte("abc\n")).DoAndReturn(func(p []byte) (int, error) {
			written = append(written, p[:2]...)
			return 2, nil
		}),
		conn.EXPECT().Write([]byte("c\n")).DoAndReturn(func(p []byte) (int, error) {
			written = append(written, p...)
			return len(p), nil
		}),
	)
	conn.EXPECT().Shutdown().Return(nil)
	conn.EXPECT().Close().Return(nil)

	c := chat.New("peer", dialer, &recorder{}, logger.Nop(), testTimeouts())
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Send("abc"))
	assert.Equal(t, "abc\n", string(written))

	c.Stop()
}

func TestClient_StopUnblocksStuckSend(t *testing.T) {
	address, conns := startPeer(t)
	c, _ := newTCPClient(t, address)

	require.NoError(t, c.Connect(context.Background()))
	acceptPeer(t, conns)

	// The peer never reads, so the socket buffers fill and the write blocks.
	sent := make(chan error, 1)
	go func() { sent <- c.Send(strings.Repeat("x", 32<<20)) }()
	time.Sleep(200 * time.Millisecond)

	stateRead := make(chan chat.State, 1)
	go func() { stateRead <- c.State() }()
	select {
	case state := <-stateRead:
		assert.Equal(t, chat.StateConnected, state)
	case <-time.After(time.Second):
		t.Fatal("State blocked behind a pending send")
	}

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(testTimeouts().ShutdownWait + 500*time.Millisecond):
		t.Fatal("Stop did not return while a send was blocked")
	}

	select {
	case err := <-sent:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not unblock the pending send")
	}
	assert.Equal(t, chat.StateDisconnected, c.State())
}

func TestClient_BlankHostIsReportedByConnect(t *testing.T) {
	c, display := newTCPClient(t, config.Endpoint{Host: "  ", Port: 56789}.Address())

	err := c.Connect(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1, display.Notices("Connection error: "))
	assert.Equal(t, chat.StateDisconnected, c.State())
}
