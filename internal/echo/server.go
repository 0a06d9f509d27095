// Package echo implements a responder that sends every received chunk straight back.
//
// It serves one connection at a time; further clients wait in the listen backlog
// until the current one hangs up. Plain TCP and WebSocket clients share the port:
// a connection that opens with an HTTP request line is upgraded, anything else is
// treated as a raw byte stream.
package echo

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/gobwas/ws"

	"github.com/omochice/toy-line-chat/internal/logger"
	"github.com/omochice/toy-line-chat/internal/transport"
)

const readChunk = 1024

// Server is a single-connection echo responder.
type Server struct {
	address  string
	listener net.Listener
	log      *logger.Logger

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	serving  atomic.Bool

	mu     sync.Mutex
	active net.Conn
}

// New creates an echo server for address.
func New(address string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		address: address,
		log:     log,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}
	s.listener = listener

	s.log.Info().Str("address", listener.Addr().String()).Msg("echo server listening")

	return nil
}

// Start binds and serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts and handles connections one after another until Stop is called.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("echo server is not listening")
	}

	s.serving.Store(true)
	defer close(s.done)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				s.log.Error().Err(err).Msg("failed to accept connection")
				continue
			}
		}

		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		s.handle(conn)
		s.track(nil)
	}
}

// Stop closes the listener and the current connection, then waits for Serve to return.
// It is safe to call more than once.
func (s *Server) Stop() {
	s.quitOnce.Do(func() { close(s.quit) })

	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.mu.Lock()
	if s.active != nil {
		_ = s.active.Close()
	}
	s.mu.Unlock()

	if s.serving.Load() {
		<-s.done
	}
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// track records the connection being served. It refuses new connections once stopped.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn != nil {
		select {
		case <-s.quit:
			return false
		default:
		}
	}
	s.active = conn

	return true
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	log := s.log.WithStr("remote", conn.RemoteAddr().String())
	log.Info().Msg("connected")

	stream, err := s.open(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Warn().Err(err).Msg("failed to open stream")
		}
		log.Info().Msg("connection closed, waiting for next")
		return
	}

	buf := make([]byte, readChunk)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			data := buf[:n]
			if utf8.Valid(data) {
				log.Info().Str("data", string(data)).Msg("received")
			} else {
				log.Info().Str("raw", fmt.Sprintf("%q", data)).Msg("received")
			}

			if _, werr := stream.Write(data); werr != nil {
				log.Warn().Err(werr).Msg("failed to echo")
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Msg("read failed")
			}
			break
		}
	}

	log.Info().Msg("connection closed, waiting for next")
}

// open detects the protocol spoken on conn and returns a byte stream for it.
func (s *Server) open(conn net.Conn) (transport.Conn, error) {
	reader := bufio.NewReader(conn)

	// Peek only what already arrived so a short raw message is not held back.
	if _, err := reader.Peek(1); err != nil {
		return nil, err
	}
	prefix, _ := reader.Peek(min(reader.Buffered(), 4))

	buffered := &bufferedConn{Conn: conn, reader: reader}

	if !isHTTP(prefix) {
		return transport.NewTCPConn(buffered), nil
	}

	if _, err := ws.Upgrade(buffered); err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("upgraded to websocket")

	return transport.NewWSServerConn(conn, reader), nil
}

func isHTTP(prefix []byte) bool {
	return bytes.HasPrefix(prefix, []byte("GET "))
}

// bufferedConn wraps a net.Conn with a bufio.Reader to preserve peeked data
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}
