package simhost

import (
	"sort"
	"strings"
	"sync"

	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

// Universe tracks the online players and the sessions behind them.
type Universe struct {
	h *Host

	mu       sync.RWMutex
	players  map[uuid.UUID]*Player
	sessions map[uuid.UUID][]*Session // player -> sessions (multi-login)
	nextID   int
}

func newUniverse(h *Host) *Universe {
	return &Universe{
		h:        h,
		players:  make(map[uuid.UUID]*Player),
		sessions: make(map[uuid.UUID][]*Session),
		nextID:   1,
	}
}

// OnlinePlayers returns the online players ordered by name.
func (u *Universe) OnlinePlayers() []host.PlayerRef {
	u.mu.RLock()
	out := make([]host.PlayerRef, 0, len(u.players))
	for _, p := range u.players {
		out = append(out, p)
	}
	u.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username()) < strings.ToLower(out[j].Username())
	})
	return out
}

// PlayerByUsername finds an online player, ignoring case.
func (u *Universe) PlayerByUsername(name string) (*Player, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, p := range u.players {
		if strings.EqualFold(p.name, name) {
			return p, true
		}
	}
	return nil, false
}

// PlayerByUUID finds an online player by id.
func (u *Universe) PlayerByUUID(id uuid.UUID) (*Player, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	p, ok := u.players[id]
	return p, ok
}

// IsOperator reports whether id, or the name of the online player with
// that id, is listed as an operator.
func (u *Universe) IsOperator(id uuid.UUID) bool {
	name := ""
	if p, ok := u.PlayerByUUID(id); ok {
		name = p.name
	}
	return u.h.Config().IsOperator(name, id)
}

// Count returns the number of online players.
func (u *Universe) Count() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.players)
}

// Sessions returns the sessions logged in as id.
func (u *Universe) Sessions(id uuid.UUID) []*Session {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]*Session(nil), u.sessions[id]...)
}

func (u *Universe) nextSessionID() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	id := u.nextID
	u.nextID++
	return id
}

// attach logs s in as the player with id, creating the player on its
// first session. first reports whether the player just came online.
func (u *Universe) attach(s *Session, id uuid.UUID, name string) (p *Player, first bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.players[id]
	if !ok {
		p = &Player{id: id, name: name, h: u.h, world: u.h.Config().DefaultWorld}
		u.players[id] = p
		first = true
	}
	u.sessions[id] = append(u.sessions[id], s)
	return p, first
}

// detach removes s. last reports whether its player went offline.
func (u *Universe) detach(s *Session) (p *Player, last bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p = s.Player()
	if p == nil {
		return nil, false
	}
	list := u.sessions[p.id]
	for i, ss := range list {
		if ss == s {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) > 0 {
		u.sessions[p.id] = list
		return p, false
	}
	delete(u.sessions, p.id)
	delete(u.players, p.id)
	return p, true
}
