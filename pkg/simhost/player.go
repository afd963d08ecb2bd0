package simhost

import (
	"strings"
	"sync"

	"github.com/crystal-mush/localchat/pkg/config"
	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

// Position is a point in a world.
type Position struct {
	X, Y, Z float64
}

// Player is a connected account. It stays online while at least one
// session is logged in as it.
type Player struct {
	id   uuid.UUID
	name string
	h    *Host

	mu    sync.RWMutex
	world string
	pos   Position
}

// AccountID returns the player UUID for an account. Accounts without a
// configured UUID get a stable name-based one.
func AccountID(a config.Account) uuid.UUID {
	if id, err := uuid.Parse(a.UUID); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("localchat:"+strings.ToLower(a.Username)))
}

func (p *Player) UUID() uuid.UUID  { return p.id }
func (p *Player) Username() string { return p.name }

// World returns the name of the world the player is in.
func (p *Player) World() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.world
}

// Position returns the player's coordinates.
func (p *Player) Position() Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

// MoveTo places the player at pos in world. An empty world keeps the
// current one.
func (p *Player) MoveTo(world string, pos Position) {
	p.mu.Lock()
	if world != "" {
		p.world = world
	}
	p.pos = pos
	p.mu.Unlock()
}

// SendMessage delivers msg to every session of the player.
func (p *Player) SendMessage(msg host.Message) {
	p.h.bus.EmitToPlayer(p.id, events.Event{
		Type:    events.EvText,
		Message: msg,
	})
}

// HasPermission reports whether the player was granted node in the config.
func (p *Player) HasPermission(node string) bool {
	return p.h.Config().Granted(p.name, node)
}

var _ host.PlayerRef = (*Player)(nil)

// ConnectEvent is fired as "PlayerConnectEvent" after a player comes online.
type ConnectEvent struct {
	Player *Player
}

// DisconnectEvent is fired as "PlayerDisconnectEvent" once a player's last
// session is gone.
type DisconnectEvent struct {
	Player *Player
}
