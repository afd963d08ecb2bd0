package plugin

import (
	"fmt"
	"strings"
	"sync"

	"github.com/crystal-mush/localchat/pkg/audit"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

type testPlayer struct {
	id     uuid.UUID
	name   string
	grants map[string]bool

	World   string
	X, Y, Z float64

	mu   sync.Mutex
	msgs []host.Message
}

func newTestPlayer(name, world string, x, y, z float64) *testPlayer {
	return &testPlayer{id: uuid.New(), name: name, World: world, X: x, Y: y, Z: z}
}

func (p *testPlayer) UUID() uuid.UUID  { return p.id }
func (p *testPlayer) Username() string { return p.name }
func (p *testPlayer) SendMessage(m host.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
}

func (p *testPlayer) HasPermission(node string) bool {
	return p.grants[node]
}

func (p *testPlayer) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return ""
	}
	return p.msgs[len(p.msgs)-1].String()
}

type testUniverse struct {
	players []*testPlayer
	ops     map[uuid.UUID]bool
}

func (u *testUniverse) OnlinePlayers() []host.PlayerRef {
	out := make([]host.PlayerRef, len(u.players))
	for i, p := range u.players {
		out[i] = p
	}
	return out
}

func (u *testUniverse) IsOperator(id uuid.UUID) bool {
	return u.ops[id]
}

// testRegistry accepts only the kinds listed in accept.
type testRegistry struct {
	mu       sync.Mutex
	accept   map[string]bool
	handlers map[string][]func(any)
}

func (r *testRegistry) Register(kind string, h func(any)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accept[kind] {
		return fmt.Errorf("unknown event kind %q", kind)
	}
	if r.handlers == nil {
		r.handlers = make(map[string][]func(any))
	}
	r.handlers[kind] = append(r.handlers[kind], h)
	return nil
}

func (r *testRegistry) fire(kind string, ev any) {
	r.mu.Lock()
	hs := r.handlers[kind]
	r.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

type testArgTypes struct {
	String       string
	Integer      string
	GreedyString string
}

type testCommand struct {
	spec           host.CommandSpec
	node           string
	level          int
	aliases        []string
	greedy         bool
	AllowExtraArgs bool
}

func (c *testCommand) SetPermissionNode(node string)        { c.node = node }
func (c *testCommand) SetRequiredPermissionLevel(level int) { c.level = level }
func (c *testCommand) AddAliases(aliases ...string)         { c.aliases = append(c.aliases, aliases...) }
func (c *testCommand) SetGreedy(on bool)                    { c.greedy = on }

type testPlatform struct {
	reg  *testRegistry
	uni  *testUniverse
	cmds map[string]*testCommand
}

func newTestPlatform(players ...*testPlayer) *testPlatform {
	return &testPlatform{
		reg:  &testRegistry{accept: map[string]bool{ChatEventKind: true, "PlayerConnectEvent": true}},
		uni:  &testUniverse{players: players, ops: map[uuid.UUID]bool{}},
		cmds: make(map[string]*testCommand),
	}
}

func (p *testPlatform) EventRegistry() any { return p.reg }
func (p *testPlatform) Universe() any      { return p.uni }
func (p *testPlatform) ArgTypes() any {
	return &testArgTypes{String: "string", Integer: "integer", GreedyString: "greedy_string"}
}
func (p *testPlatform) NewCommand(spec host.CommandSpec) any {
	return &testCommand{spec: spec}
}
func (p *testPlatform) RegisterCommand(cmd any) error {
	c, ok := cmd.(*testCommand)
	if !ok {
		return fmt.Errorf("not a command: %T", cmd)
	}
	p.cmds[c.spec.Name] = c
	for _, a := range c.aliases {
		p.cmds[a] = c
	}
	return nil
}

// invoke runs a command line the way a host would.
func (p *testPlatform) invoke(sender host.Sender, line string) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	c := p.cmds[fields[0]]
	spec := c.spec
	rest := fields[1:]
	if len(spec.Subcommands) > 0 && len(rest) > 0 {
		for _, sub := range spec.Subcommands {
			if sub.Name == rest[0] {
				spec, rest = sub, rest[1:]
				break
			}
		}
	}
	args := make(map[string]string)
	for i, a := range spec.Args {
		if i >= len(rest) {
			break
		}
		if i == len(spec.Args)-1 {
			args[a.Name] = strings.Join(rest[i:], " ")
		} else {
			args[a.Name] = rest[i]
		}
	}
	spec.Run(&testContext{sender: sender, args: args, Input: line})
}

type testContext struct {
	sender host.Sender
	args   map[string]string
	Input  string
}

func (c *testContext) Sender() host.Sender { return c.sender }
func (c *testContext) Arg(name string) (string, bool) {
	v, ok := c.args[name]
	return v, ok
}

type joinEvent struct {
	Player host.PlayerRef
}

type console struct{}

func (console) UUID() uuid.UUID          { return uuid.Nil }
func (console) SendMessage(host.Message) {}

type closingAuditor struct {
	closed bool
}

func (a *closingAuditor) Append(audit.Entry) error { return nil }
func (a *closingAuditor) Close() error {
	a.closed = true
	return nil
}
