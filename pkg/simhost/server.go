package simhost

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// WelcomeText is sent to line clients on connect.
const WelcomeText = "Welcome to localchat. Commands: connect <name> <password>, WHO, QUIT"

// Server is the line (telnet style) transport.
type Server struct {
	h    *Host
	auth *AuthService
	log  *zap.Logger

	mu       sync.Mutex
	ln       net.Listener
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a line server for h.
func NewServer(h *Host, auth *AuthService) *Server {
	return &Server{
		h:        h,
		auth:     auth,
		log:      h.log.Named("tcp"),
		sessions: make(map[*Session]struct{}),
	}
}

// Listen binds addr and serves connections in the background.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// acceptLoop accepts connections on the given listener until it is closed.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept error", zap.Error(err))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.HandleConn(conn)
		}()
	}
}

// Close stops accepting, closes every session and waits for the
// connection goroutines.
func (s *Server) Close() error {
	s.mu.Lock()
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	open := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.Close()
	}
	s.wg.Wait()
	return err
}

// HandleConn manages a single client connection lifecycle.
func (s *Server) HandleConn(conn net.Conn) {
	sess := newLineSession(s.h.universe.nextSessionID(), conn, s.h.render)
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.h.metrics.connected(TransportTCP)
	s.log.Info("new connection", zap.Int("session", sess.ID), zap.String("addr", sess.Addr))

	defer func() {
		s.h.Logout(sess)
		sess.Close()
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		s.log.Info("connection closed", zap.Int("session", sess.ID), zap.String("addr", sess.Addr))
	}()

	sess.SendText(WelcomeText)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 8192), 8192)
	for scanner.Scan() {
		if sess.Closed() {
			return
		}
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if sess.Player() == nil {
			s.handleLoginCommand(sess, line)
		} else {
			s.h.HandleLine(sess, line)
		}
		if sess.Closed() {
			return
		}
	}
}

// handleLoginCommand processes pre-login commands.
func (s *Server) handleLoginCommand(sess *Session, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	switch strings.ToUpper(input) {
	case "QUIT", "/QUIT":
		sess.SendText("Goodbye!")
		sess.Close()
		return
	case "WHO", "/WHO":
		s.h.cmdWho(&callCtx{sender: sessionSender{sess}})
		return
	}

	command, user, password := ParseConnect(input)
	if !strings.HasPrefix(command, "co") {
		sess.SendText(WelcomeText)
		return
	}
	if user == "" {
		sess.SendText("Usage: connect <name> <password>")
		return
	}
	acct, err := s.auth.Authenticate(user, password)
	if err != nil {
		s.log.Info("failed login", zap.Int("session", sess.ID), zap.String("user", user))
		sess.SendText("Either that player does not exist, or has a different password.")
		return
	}
	p := s.h.Login(sess, acct)
	sess.SendText("Connected as " + p.name + ". Type /help for commands.")
}

// ParseConnect splits "connect name password" into its parts. The command
// is lowercased; a leading slash is dropped.
func ParseConnect(input string) (command, user, password string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if len(fields) == 0 {
		return "", "", ""
	}
	command = strings.ToLower(fields[0])
	if len(fields) > 1 {
		user = fields[1]
	}
	if len(fields) > 2 {
		password = strings.Join(fields[2:], " ")
	}
	return command, user, password
}
