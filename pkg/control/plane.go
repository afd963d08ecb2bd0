// Package control is the administrative side of local chat: the chat-admin
// allowlist, the global disable switches, the local radius, the periodic
// warning broadcast and the authorization chain every admin command goes
// through.
package control

import (
	"bytes"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crystal-mush/localchat/pkg/audit"
	"github.com/crystal-mush/localchat/pkg/chat"
	"github.com/crystal-mush/localchat/pkg/chatstate"
	"github.com/crystal-mush/localchat/pkg/compat"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Permission nodes. PermChatAdmin is only attached to the host command;
// changes to the allowlist never accept a node.
const (
	PermChatDebug   = "localchat.command.chatdebug"
	PermLocalRadius = "localchat.command.localradius"
	PermChatWarning = "localchat.command.chatwarning"
	PermChatDisable = "localchat.admin.chatdisable"
	PermChatAdmin   = "localchat.admin.chatadmin"
	PermClearChat   = "localchat.admin.clearchat"
	PermBypass      = "localchat.bypass"
)

// Defaults.
const (
	DefaultClearLines  = 120
	DefaultWarningText = "Reminder: keep the chat respectful. Spam, insults and advertising are not allowed."
)

// Host is the part of the host the plane talks to. *compat.Adapter
// satisfies it.
type Host interface {
	OnlinePlayers() []host.PlayerRef
	PlayerByName(name string) (host.PlayerRef, bool)
	PlayerByID(id uuid.UUID) (host.PlayerRef, bool)
	QueryOperator(subject any, id uuid.UUID) compat.Permission
	QueryPermission(subject any, node string) compat.Permission
	SenderName(sender any) string
	ParseMarkup(text string) (host.Message, bool)
}

// Auditor records successful admin mutations.
type Auditor interface {
	Append(e audit.Entry) error
}

// Channel selects one of the per-channel disable switches.
type Channel int

const (
	ChannelLocal Channel = iota
	ChannelMsg
)

func (c Channel) String() string {
	if c == ChannelMsg {
		return "msg"
	}
	return "local"
}

// Options configures a Plane.
type Options struct {
	Logger      *zap.Logger
	Auditor     Auditor
	Radius      int
	WarningText string
	ClearLines  int
	Admins      []uuid.UUID
	// WarningUnit is the length of one warning interval step. It is a
	// minute outside tests.
	WarningUnit time.Duration
}

// Plane owns the process-wide chat control state. Create it with New and
// release it with Close.
type Plane struct {
	host    Host
	store   *chatstate.Store
	log     *zap.Logger
	auditor Auditor

	adminsMu sync.Mutex
	admins   map[uuid.UUID]struct{}

	chatDisabled  atomic.Bool
	localDisabled atomic.Bool
	msgDisabled   atomic.Bool
	radius        atomic.Int64
	clearLines    int

	textMu   sync.RWMutex
	warnText string

	// warnMu guards the schedule; the ticker goroutine never takes it.
	warnMu      sync.Mutex
	warnMinutes int
	warnUnit    time.Duration
	warnStop    chan struct{}
	warnDone    chan struct{}
	closed      bool
}

// New builds a plane over h and store.
func New(h Host, store *chatstate.Store, opts Options) *Plane {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Plane{
		host:       h,
		store:      store,
		log:        logger.Named("control"),
		auditor:    opts.Auditor,
		admins:     make(map[uuid.UUID]struct{}),
		clearLines: opts.ClearLines,
		warnText:   opts.WarningText,
		warnUnit:   opts.WarningUnit,
	}
	if p.clearLines <= 0 {
		p.clearLines = DefaultClearLines
	}
	if p.warnText == "" {
		p.warnText = DefaultWarningText
	}
	if p.warnUnit <= 0 {
		p.warnUnit = time.Minute
	}
	radius := opts.Radius
	if radius < 0 {
		radius = 0
	}
	p.radius.Store(int64(radius))
	for _, id := range opts.Admins {
		if id != uuid.Nil {
			p.admins[id] = struct{}{}
		}
	}
	return p
}

// Store returns the per-player chat state.
func (p *Plane) Store() *chatstate.Store {
	return p.store
}

// Radius returns the current local chat radius.
func (p *Plane) Radius() int {
	return int(p.radius.Load())
}

// SetRadius sets the local chat radius. Negative values are rejected.
func (p *Plane) SetRadius(n int) error {
	if n < 0 {
		return ErrInvalidInput
	}
	p.radius.Store(int64(n))
	return nil
}

// ChatDisabled reports the global chat kill switch.
func (p *Plane) ChatDisabled() bool {
	return p.chatDisabled.Load()
}

// ChannelDisabled reports the switch for ch.
func (p *Plane) ChannelDisabled(ch Channel) bool {
	return p.channelFlag(ch).Load()
}

func (p *Plane) channelFlag(ch Channel) *atomic.Bool {
	if ch == ChannelMsg {
		return &p.msgDisabled
	}
	return &p.localDisabled
}

// flip inverts b and returns the new value.
func flip(b *atomic.Bool) bool {
	for {
		old := b.Load()
		if b.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// IsChatAdmin reports allowlist membership.
func (p *Plane) IsChatAdmin(id uuid.UUID) bool {
	p.adminsMu.Lock()
	defer p.adminsMu.Unlock()
	_, ok := p.admins[id]
	return ok
}

// addAdmin adds id and reports whether it was new.
func (p *Plane) addAdmin(id uuid.UUID) bool {
	p.adminsMu.Lock()
	defer p.adminsMu.Unlock()
	if _, ok := p.admins[id]; ok {
		return false
	}
	p.admins[id] = struct{}{}
	return true
}

// removeAdmin removes id and reports whether it was present.
func (p *Plane) removeAdmin(id uuid.UUID) bool {
	p.adminsMu.Lock()
	defer p.adminsMu.Unlock()
	if _, ok := p.admins[id]; !ok {
		return false
	}
	delete(p.admins, id)
	return true
}

// Admins returns the allowlist sorted by UUID string.
func (p *Plane) Admins() []uuid.UUID {
	p.adminsMu.Lock()
	out := make([]uuid.UUID, 0, len(p.admins))
	for id := range p.admins {
		out = append(out, id)
	}
	p.adminsMu.Unlock()
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}

// identity returns the actor's UUID, or uuid.Nil for console and other
// non-player origins.
func identity(s host.Sender) uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.UUID()
}

// Authorize runs the chain: no identity, chat-admin, host operator, then
// the permission node. allowIfUnknown decides what a host without a usable
// permission query means for node.
func (p *Plane) Authorize(actor host.Sender, node string, allowIfUnknown bool) bool {
	if p.canManageAdmins(actor) {
		return true
	}
	if node == "" {
		return false
	}
	return p.host.QueryPermission(actor, node).Resolve(allowIfUnknown)
}

// canManageAdmins is the chain without the permission node step.
func (p *Plane) canManageAdmins(actor host.Sender) bool {
	id := identity(actor)
	if id == uuid.Nil {
		return true
	}
	if p.IsChatAdmin(id) {
		return true
	}
	return p.host.QueryOperator(actor, id) == compat.PermAllowed
}

// CanBypass reports whether actor is exempt from the disable switches.
func (p *Plane) CanBypass(actor host.Sender) bool {
	return p.Authorize(actor, PermBypass, false)
}

// AllowChat is the gate in front of chat routing. It returns false and a
// notice for the sender when a switch blocks the line.
func (p *Plane) AllowChat(sender host.PlayerRef, mode chatstate.Mode) (bool, host.Message) {
	if p.chatDisabled.Load() && !p.CanBypass(sender) {
		return false, p.system(chat.ColorError, "Chat is currently disabled.")
	}
	if mode == chatstate.Local && p.localDisabled.Load() && !p.CanBypass(sender) {
		return false, p.system(chat.ColorError, "Local chat is currently disabled. Use /g for global chat.")
	}
	return true, host.Message{}
}

// Broadcast sends msg to every online player and returns how many got it.
func (p *Plane) Broadcast(msg host.Message) int {
	n := 0
	for _, pl := range p.host.OnlinePlayers() {
		if pl == nil {
			continue
		}
		pl.SendMessage(msg)
		n++
	}
	return n
}

func (p *Plane) system(color, text string) host.Message {
	return chat.System(p.host, color, text)
}

func (p *Plane) record(actor host.Sender, action, target, detail string) {
	if p.auditor == nil {
		return
	}
	e := audit.Entry{
		Time:      time.Now().UTC(),
		Actor:     identity(actor),
		ActorName: p.actorName(actor),
		Action:    action,
		Target:    target,
		Detail:    detail,
	}
	if err := p.auditor.Append(e); err != nil {
		p.log.Error("audit append failed", zap.String("action", action), zap.Error(err))
	}
}

func (p *Plane) actorName(actor host.Sender) string {
	if identity(actor) == uuid.Nil {
		return "console"
	}
	return p.host.SenderName(actor)
}

// Close stops the warning scheduler. It is safe to call more than once.
func (p *Plane) Close() error {
	p.warnMu.Lock()
	defer p.warnMu.Unlock()
	p.stopWarningsLocked()
	p.warnMinutes = 0
	p.closed = true
	return nil
}
