package simhost

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

// TransportType identifies the kind of transport a Session uses.
type TransportType int

const (
	TransportTCP       TransportType = iota // Line based, ANSI colored
	TransportWebSocket                      // JSON events
)

func (t TransportType) String() string {
	if t == TransportWebSocket {
		return "websocket"
	}
	return "tcp"
}

// Session is one client connection. It implements events.Subscriber so it
// can receive the events of the player it is logged in as.
type Session struct {
	ID        int
	Addr      string
	ConnTime  time.Time
	Transport TransportType

	conn   net.Conn
	render *Renderer

	// SendFunc overrides the default line output (used by the WebSocket
	// transport).
	SendFunc func(msg host.Message)
	// ReceiveFunc overrides the default event rendering.
	ReceiveFunc func(ev events.Event)
	// CloseFunc releases a transport that has no net.Conn.
	CloseFunc func()

	mu       sync.Mutex
	player   *Player
	lastCmd  time.Time
	cmdCount int
	closed   bool
}

func newLineSession(id int, conn net.Conn, render *Renderer) *Session {
	now := time.Now()
	return &Session{
		ID:       id,
		Addr:     conn.RemoteAddr().String(),
		ConnTime: now,
		conn:     conn,
		render:   render,
		lastCmd:  now,
	}
}

// Player returns the player the session is logged in as, or nil.
func (s *Session) Player() *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

func (s *Session) setPlayer(p *Player) {
	s.mu.Lock()
	s.player = p
	s.mu.Unlock()
}

// touch records command input.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastCmd = time.Now()
	s.cmdCount++
	s.mu.Unlock()
}

// Idle returns the time since the last input.
func (s *Session) Idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastCmd)
}

// Send writes msg to the client.
func (s *Session) Send(msg host.Message) {
	if s.SendFunc != nil {
		s.SendFunc(msg)
		return
	}
	s.writeLine(s.render.Render(msg))
}

// SendText writes a plain line.
func (s *Session) SendText(text string) {
	s.Send(host.Raw(text))
}

func (s *Session) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn == nil {
		return
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\r\n"
	}
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	s.conn.Write([]byte(line))
}

// Close shuts down the connection.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		if s.conn != nil {
			s.conn.Close()
		}
		if s.CloseFunc != nil {
			s.CloseFunc()
		}
	}
}

// Receive implements events.Subscriber.
func (s *Session) Receive(ev events.Event) {
	if s.ReceiveFunc != nil {
		s.ReceiveFunc(ev)
		return
	}
	s.Send(ev.Message)
}

// Closed implements events.Subscriber.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ events.Subscriber = (*Session)(nil)

// sessionSender lets a session that is not logged in receive replies.
type sessionSender struct {
	s *Session
}

func (ss sessionSender) UUID() uuid.UUID              { return uuid.Nil }
func (ss sessionSender) SendMessage(msg host.Message) { ss.s.Send(msg) }
