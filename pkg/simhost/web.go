package simhost

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Version is reported by /health.
const Version = "0.3.0"

// WebOptions configures the web transport.
type WebOptions struct {
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Transcript backs /api/v1/transcript. Nil disables the endpoint.
	Transcript  *Transcript
	CORSOrigins []string
	RateLimit   int // login requests per minute per IP
}

// WebServer provides the REST API and the WebSocket transport.
type WebServer struct {
	h          *Host
	auth       *AuthService
	transcript *Transcript
	log        *zap.Logger
	rl         *rateLimiter
	upgrader   websocket.Upgrader
	router     chi.Router
	startTime  time.Time

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewWebServer creates a web server bound to the host.
func NewWebServer(h *Host, auth *AuthService, opts WebOptions) *WebServer {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 30
	}
	ws := &WebServer{
		h:          h,
		auth:       auth,
		transcript: opts.Transcript,
		log:        h.log.Named("web"),
		rl:         newRateLimiter(opts.RateLimit),
		startTime:  time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(opts.CORSOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range opts.CORSOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(ws.log))

	r.Get("/health", ws.handleHealth)
	if opts.Gatherer != nil && h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler(opts.Gatherer, h.universe.Count))
	}
	r.Get("/ws", ws.handleWebSocket)
	r.Route("/api/v1", func(r chi.Router) {
		r.With(ws.rl.limitHandler).Post("/auth/login", ws.handleAuthLogin)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth(auth))
			r.Get("/players", ws.handlePlayers)
			r.Get("/players/{id}", ws.handlePlayer)
			if ws.transcript != nil {
				r.Get("/transcript", ws.handleTranscript)
			}
		})
	})
	ws.router = r
	return ws
}

// Handler returns the HTTP handler.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// Start listens on addr and blocks until Stop.
func (ws *WebServer) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ws.mu.Lock()
	ws.httpSrv = srv
	ws.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ws.rl.cleanup()
			case <-stop:
				return
			}
		}
	}()

	ws.log.Info("listening", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the web server.
func (ws *WebServer) Stop(ctx context.Context) error {
	ws.mu.Lock()
	srv := ws.httpSrv
	ws.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- REST handlers ---

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
		"players":        ws.h.universe.Count(),
	})
}

func (ws *WebServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// PlayerInfo is the REST view of an online player.
type PlayerInfo struct {
	UUID  string  `json:"uuid"`
	Name  string  `json:"name"`
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

func playerInfo(p *Player) PlayerInfo {
	pos := p.Position()
	return PlayerInfo{UUID: p.id.String(), Name: p.name, World: p.World(), X: pos.X, Y: pos.Y, Z: pos.Z}
}

func (ws *WebServer) handlePlayers(w http.ResponseWriter, r *http.Request) {
	online := ws.h.universe.OnlinePlayers()
	out := make([]PlayerInfo, 0, len(online))
	for _, ref := range online {
		out = append(out, playerInfo(ref.(*Player)))
	}
	writeJSON(w, http.StatusOK, out)
}

func (ws *WebServer) handlePlayer(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")
	var (
		p  *Player
		ok bool
	)
	if id, err := uuid.Parse(key); err == nil {
		p, ok = ws.h.universe.PlayerByUUID(id)
	} else {
		p, ok = ws.h.universe.PlayerByUsername(key)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "player not online")
		return
	}
	writeJSON(w, http.StatusOK, playerInfo(p))
}

// TranscriptLine is the REST view of a transcript line.
type TranscriptLine struct {
	Time   time.Time `json:"time"`
	Sender string    `json:"sender"`
	World  string    `json:"world"`
	Text   string    `json:"text"`
}

// handleTranscript returns the caller's own recent chat.
func (ws *WebServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, err := uuid.Parse(claims.PlayerID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	lines, err := ws.transcript.Recent(r.Context(), id, limit)
	if err != nil {
		ws.log.Warn("transcript read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "transcript unavailable")
		return
	}
	out := make([]TranscriptLine, len(lines))
	for i, l := range lines {
		out[i] = TranscriptLine{Time: l.Time, Sender: l.SenderName, World: l.World, Text: l.Text}
	}
	writeJSON(w, http.StatusOK, out)
}

// --- WebSocket ---

// WSMessage is the JSON message format for WebSocket communication.
type WSMessage struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Segments []host.Segment `json:"segments,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Command  string         `json:"command,omitempty"`
}

// wsConn holds the WebSocket connection and its write mutex.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	wc.conn.WriteJSON(msg)
}

// newWSSession creates a Session whose output is written as JSON.
func (ws *WebServer) newWSSession(conn *websocket.Conn, addr string) (*Session, *wsConn) {
	wc := &wsConn{conn: conn}
	now := time.Now()
	s := &Session{
		ID:        ws.h.universe.nextSessionID(),
		Addr:      addr,
		ConnTime:  now,
		Transport: TransportWebSocket,
		lastCmd:   now,
	}
	s.SendFunc = func(msg host.Message) {
		wc.sendJSON(WSMessage{Type: "text", Text: msg.String(), Segments: msg.Segments})
	}
	s.ReceiveFunc = func(ev events.Event) {
		wc.sendJSON(WSMessage{
			Type:     ev.Type.String(),
			Text:     ev.Message.String(),
			Segments: ev.Message.Segments,
			Data:     ev.Data,
		})
	}
	s.CloseFunc = func() { conn.Close() }
	return s, wc
}

// handleWebSocket upgrades the connection. A valid token in the query or
// Authorization header logs the session in right away.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *Claims
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r)
	}
	if token != "" {
		var err error
		claims, err = ws.auth.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s, wc := ws.newWSSession(conn, r.RemoteAddr)
	ws.h.metrics.connected(TransportWebSocket)

	if claims != nil {
		acct, err := ws.auth.Account(claims)
		if err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: "account no longer exists"})
			conn.Close()
			return
		}
		ws.login(wc, func() (*Player, error) { return ws.h.Login(s, acct), nil })
	} else {
		wc.sendJSON(WSMessage{Type: "welcome", Text: `Connected. Send {"type":"login","command":"connect name password"} to authenticate.`})
	}

	go ws.readLoop(s, wc)
}

func (ws *WebServer) login(wc *wsConn, do func() (*Player, error)) {
	p, err := do()
	if err != nil {
		wc.sendJSON(WSMessage{Type: "error", Text: "Invalid credentials"})
		return
	}
	wc.sendJSON(WSMessage{
		Type: "login",
		Data: map[string]any{
			"player_id":   p.id.String(),
			"player_name": p.name,
			"world":       p.World(),
		},
	})
}

func (ws *WebServer) readLoop(s *Session, wc *wsConn) {
	defer func() {
		ws.h.Logout(s)
		s.Close()
		ws.log.Info("websocket closed", zap.Int("session", s.ID), zap.String("addr", s.Addr))
	}()

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug("read error", zap.Int("session", s.ID), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: "Invalid JSON message"})
			continue
		}

		switch msg.Type {
		case "login":
			ws.handleWSLogin(s, wc, msg.Command)
		case "command", "chat":
			line := msg.Command
			if msg.Type == "chat" {
				line = msg.Text
			}
			if s.Player() == nil {
				ws.handleWSLogin(s, wc, line)
				continue
			}
			ws.h.HandleLine(s, line)
		default:
			wc.sendJSON(WSMessage{Type: "error", Text: "Unknown message type: " + msg.Type})
		}
		if s.Closed() {
			return
		}
	}
}

func (ws *WebServer) handleWSLogin(s *Session, wc *wsConn, input string) {
	if s.Player() != nil {
		wc.sendJSON(WSMessage{Type: "error", Text: "Already connected"})
		return
	}
	command, user, password := ParseConnect(input)
	if !strings.HasPrefix(command, "co") {
		wc.sendJSON(WSMessage{Type: "error", Text: "Use: connect <name> <password>"})
		return
	}
	ws.login(wc, func() (*Player, error) {
		acct, err := ws.auth.Authenticate(user, password)
		if err != nil {
			return nil, err
		}
		return ws.h.Login(s, acct), nil
	})
}
