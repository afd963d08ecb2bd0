package compat

import (
	"iter"
	"strings"
	"sync"

	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

// fakeVec mimics a host vector with float32 fields.
type fakeVec struct {
	X, Y, Z float32
}

type fakeTransform struct {
	pos fakeVec
}

func (t fakeTransform) Position() fakeVec { return t.pos }

// fakePlayer is a player handle with the richest API shape.
type fakePlayer struct {
	id    uuid.UUID
	name  string
	world string
	pos   fakeVec
	op    bool
	perms map[string]bool

	mu   sync.Mutex
	msgs []host.Message
}

func newFakePlayer(name string) *fakePlayer {
	return &fakePlayer{id: uuid.New(), name: name, world: "overworld", perms: map[string]bool{}}
}

func (p *fakePlayer) UUID() uuid.UUID          { return p.id }
func (p *fakePlayer) Username() string         { return p.name }
func (p *fakePlayer) World() string            { return p.world }
func (p *fakePlayer) Transform() fakeTransform { return fakeTransform{pos: p.pos} }
func (p *fakePlayer) IsOp() bool               { return p.op }
func (p *fakePlayer) HasPermission(node string) bool {
	return p.perms[node]
}

func (p *fakePlayer) SendMessage(m host.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
}

// basicPlayer exposes nothing beyond host.PlayerRef.
type basicPlayer struct {
	id   uuid.UUID
	name string
}

func (p *basicPlayer) UUID() uuid.UUID          { return p.id }
func (p *basicPlayer) Username() string         { return p.name }
func (p *basicPlayer) SendMessage(host.Message) {}

// consoleSender has an identity but no name accessor.
type consoleSender struct{ id uuid.UUID }

func (c consoleSender) UUID() uuid.UUID          { return c.id }
func (c consoleSender) SendMessage(host.Message) {}

// sliceUniverse answers with a slice and has exact lookups.
type sliceUniverse struct {
	players []host.PlayerRef
	ops     map[uuid.UUID]bool
	lookups int
}

func (u *sliceUniverse) OnlinePlayers() []host.PlayerRef { return u.players }

func (u *sliceUniverse) PlayerByUsername(name string) (host.PlayerRef, bool) {
	u.lookups++
	for _, p := range u.players {
		if p.Username() == name {
			return p, true
		}
	}
	return nil, false
}

func (u *sliceUniverse) PlayerByUUID(id uuid.UUID) host.PlayerRef {
	for _, p := range u.players {
		if p.UUID() == id {
			return p
		}
	}
	return nil
}

func (u *sliceUniverse) IsOperator(id uuid.UUID) bool { return u.ops[id] }

// mapUniverse only offers a map accessor.
type mapUniverse struct {
	players map[uuid.UUID]*fakePlayer
}

func (u *mapUniverse) Players() map[uuid.UUID]*fakePlayer { return u.players }

// seqUniverse only offers an iterator.
type seqUniverse struct {
	players []*fakePlayer
}

func (u *seqUniverse) GetPlayers() iter.Seq[*fakePlayer] {
	return func(yield func(*fakePlayer) bool) {
		for _, p := range u.players {
			if !yield(p) {
				return
			}
		}
	}
}

type panicUniverse struct{}

func (panicUniverse) OnlinePlayers() []host.PlayerRef { panic("host exploded") }

// Event registries in each supported shape.

type kindHandlerRegistry struct {
	handlers map[string][]func(any)
}

func (r *kindHandlerRegistry) Register(kind string, h func(any)) {
	if r.handlers == nil {
		r.handlers = map[string][]func(any){}
	}
	r.handlers[kind] = append(r.handlers[kind], h)
}

type priorityRegistry struct {
	handlers map[string]func(any)
	prio     int16
}

func (r *priorityRegistry) Register(priority int16, kind string, h func(any)) error {
	if kind == "Unknown" {
		return errUnknownKind
	}
	if r.handlers == nil {
		r.handlers = map[string]func(any){}
	}
	r.prio = priority
	r.handlers[kind] = h
	return nil
}

type keyedRegistry struct {
	handlers map[string]func(*host.ChatEvent)
}

func (r *keyedRegistry) Subscribe(kind string, key any, h func(*host.ChatEvent)) {
	if r.handlers == nil {
		r.handlers = map[string]func(*host.ChatEvent){}
	}
	r.handlers[kind] = h
}

type fullRegistry struct {
	handlers map[string]func(any) bool
}

func (r *fullRegistry) RegisterListener(priority int, kind string, key string, h func(any) bool) bool {
	if r.handlers == nil {
		r.handlers = map[string]func(any) bool{}
	}
	r.handlers[kind] = h
	return true
}

// noRegistry has a Register method with an unsupported shape.
type noRegistry struct{}

func (noRegistry) Register(kind string) {}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errUnknownKind = fakeErr("unknown event kind")

// fakePlatform hands out whatever registry and universe a test needs.
type fakePlatform struct {
	registry any
	universe any
	argTypes any
}

func (p *fakePlatform) EventRegistry() any                   { return p.registry }
func (p *fakePlatform) Universe() any                        { return p.universe }
func (p *fakePlatform) ArgTypes() any                        { return p.argTypes }
func (p *fakePlatform) NewCommand(spec host.CommandSpec) any { return &fakeCommand{name: spec.Name} }
func (p *fakePlatform) RegisterCommand(any) error            { return nil }

// markupPlatform adds a markup parser.
type markupPlatform struct {
	fakePlatform
}

func (p *markupPlatform) ParseMarkup(text string) (host.Message, error) {
	if strings.Contains(text, "<broken") {
		return host.Message{}, fakeErr("bad markup")
	}
	return host.Message{Segments: []host.Segment{{Text: text, Color: "white"}}}, nil
}

// fakeCommand is a command object with setters in several styles.
type fakeCommand struct {
	name          string
	level         int16
	node          string
	aliases       []string
	allowExtra    bool
	Strict        bool
	PermissionKey string
}

func (c *fakeCommand) SetRequiredPermissionLevel(l int16) { c.level = l }
func (c *fakeCommand) SetPermissionNode(n string)         { c.node = n }
func (c *fakeCommand) AddAliases(a ...string)             { c.aliases = append(c.aliases, a...) }
func (c *fakeCommand) SetAllowExtraArgs(b bool)           { c.allowExtra = b }

// fieldCommand only has exported fields.
type fieldCommand struct {
	Permission     string
	PermissionNode string
	AllowExtraArgs bool
	MaxArgs        int
}

// singleAliasCommand takes one alias per call.
type singleAliasCommand struct {
	aliases []string
}

func (c *singleAliasCommand) AddAlias(a string) error {
	if a == "" {
		return fakeErr("empty alias")
	}
	c.aliases = append(c.aliases, a)
	return nil
}

// fakeArgType is a host argument type.
type fakeArgType struct {
	name   string
	greedy bool
}

func (t *fakeArgType) String() string { return t.name }
func (t *fakeArgType) IsGreedy() bool { return t.greedy }

type namedArgTypes struct {
	String       *fakeArgType
	Word         *fakeArgType
	GreedyString *fakeArgType
	Count        int
}

type flaggedArgTypes struct {
	String *fakeArgType
	Text   *fakeArgType
	Tail   *fakeArgType
}

type greedyArg struct {
	Name   string
	Greedy bool
}

type fakeContext struct {
	Input  string
	sender host.Sender
}
