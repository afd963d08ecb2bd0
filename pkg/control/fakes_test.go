package control

import (
	"strings"
	"sync"

	"github.com/crystal-mush/localchat/pkg/audit"
	"github.com/crystal-mush/localchat/pkg/compat"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

type mockPlayer struct {
	id   uuid.UUID
	name string

	mu   sync.Mutex
	msgs []host.Message
}

func newMockPlayer(name string) *mockPlayer {
	return &mockPlayer{id: uuid.New(), name: name}
}

func (p *mockPlayer) UUID() uuid.UUID  { return p.id }
func (p *mockPlayer) Username() string { return p.name }
func (p *mockPlayer) SendMessage(m host.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
}

func (p *mockPlayer) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.String()
	}
	return out
}

func (p *mockPlayer) Count(text string) int {
	n := 0
	for _, m := range p.Messages() {
		if m == text {
			n++
		}
	}
	return n
}

// mockHost answers the plane's host queries from fixed tables. A nil perms
// map means the host has no permission query at all.
type mockHost struct {
	mu      sync.Mutex
	players []*mockPlayer
	ops     map[uuid.UUID]bool
	perms   map[uuid.UUID]map[string]bool
	noOps   bool
}

func (h *mockHost) add(players ...*mockPlayer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players = append(h.players, players...)
}

func (h *mockHost) OnlinePlayers() []host.PlayerRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]host.PlayerRef, len(h.players))
	for i, p := range h.players {
		out[i] = p
	}
	return out
}

func (h *mockHost) PlayerByName(name string) (host.PlayerRef, bool) {
	for _, p := range h.OnlinePlayers() {
		if strings.EqualFold(p.Username(), name) {
			return p, true
		}
	}
	return nil, false
}

func (h *mockHost) PlayerByID(id uuid.UUID) (host.PlayerRef, bool) {
	for _, p := range h.OnlinePlayers() {
		if p.UUID() == id {
			return p, true
		}
	}
	return nil, false
}

func (h *mockHost) QueryOperator(_ any, id uuid.UUID) compat.Permission {
	if h.noOps {
		return compat.PermUnknown
	}
	if h.ops[id] {
		return compat.PermAllowed
	}
	return compat.PermDenied
}

func (h *mockHost) QueryPermission(subject any, node string) compat.Permission {
	if h.perms == nil {
		return compat.PermUnknown
	}
	s, ok := subject.(host.Sender)
	if !ok {
		return compat.PermUnknown
	}
	if h.perms[s.UUID()][node] {
		return compat.PermAllowed
	}
	return compat.PermDenied
}

func (h *mockHost) SenderName(sender any) string {
	if p, ok := sender.(host.PlayerRef); ok {
		return p.Username()
	}
	return "unknown"
}

func (h *mockHost) ParseMarkup(string) (host.Message, bool) {
	return host.Message{}, false
}

// console is a sender without identity.
type console struct {
	mu   sync.Mutex
	msgs []host.Message
}

func (c *console) UUID() uuid.UUID { return uuid.Nil }
func (c *console) SendMessage(m host.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

type memAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *memAuditor) Append(e audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAuditor) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}
