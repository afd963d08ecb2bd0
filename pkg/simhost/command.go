package simhost

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/crystal-mush/localchat/pkg/host"
)

// ArgType is a command argument parser.
type ArgType struct {
	Name   string
	greedy bool
}

// IsGreedy reports whether the argument swallows the rest of the line.
func (t *ArgType) IsGreedy() bool { return t != nil && t.greedy }

func (t *ArgType) String() string { return t.Name }

// ArgTypes lists the argument parsers this host offers.
type ArgTypes struct {
	String       *ArgType
	Integer      *ArgType
	Double       *ArgType
	GreedyString *ArgType
}

var argTypes = &ArgTypes{
	String:       &ArgType{Name: "string"},
	Integer:      &ArgType{Name: "integer"},
	Double:       &ArgType{Name: "double"},
	GreedyString: &ArgType{Name: "greedy_string", greedy: true},
}

// Command is a module command built from a host.CommandSpec. Permission
// node and level are advisory in this host: they are shown in /help and
// the module does its own checks.
type Command struct {
	spec    host.CommandSpec
	node    string
	level   int
	aliases []string
	extra   bool
	greedy  bool
	subs    []*Command
	parent  string
}

func newCommand(spec host.CommandSpec, parent string) *Command {
	c := &Command{spec: spec, parent: parent}
	for _, sub := range spec.Subcommands {
		c.subs = append(c.subs, newCommand(sub, parent+spec.Name+" "))
	}
	return c
}

func (c *Command) Name() string        { return c.spec.Name }
func (c *Command) Description() string { return c.spec.Description }

func (c *Command) SetPermissionNode(node string)        { c.node = node }
func (c *Command) PermissionNode() string               { return c.node }
func (c *Command) SetRequiredPermissionLevel(level int) { c.level = level }
func (c *Command) RequiredPermissionLevel() int         { return c.level }
func (c *Command) AddAliases(aliases ...string)         { c.aliases = append(c.aliases, aliases...) }
func (c *Command) Aliases() []string                    { return append([]string(nil), c.aliases...) }
func (c *Command) SetAllowExtraArgs(on bool)            { c.extra = on }
func (c *Command) AllowExtraArgs() bool                 { return c.extra }
func (c *Command) SetGreedy(on bool)                    { c.greedy = on }

// Usage renders the argument synopsis, e.g. "/msg <player> <message...>".
func (c *Command) Usage() string {
	var sb strings.Builder
	sb.WriteString("/" + c.parent + c.spec.Name)
	if len(c.subs) > 0 {
		names := make([]string, len(c.subs))
		for i, s := range c.subs {
			names[i] = s.spec.Name
		}
		sb.WriteString(" <" + strings.Join(names, "|") + ">")
	}
	for i, a := range c.spec.Args {
		sb.WriteString(" <" + a.Name)
		if c.lastGreedy(i) {
			sb.WriteString("...")
		}
		sb.WriteString(">")
	}
	return sb.String()
}

func (c *Command) lastGreedy(i int) bool {
	if i != len(c.spec.Args)-1 {
		return false
	}
	if t, ok := c.spec.Args[i].Type.(*ArgType); ok && t.IsGreedy() {
		return true
	}
	return c.greedy
}

// bind splits words over the declared arguments.
func (c *Command) bind(words []string) (map[string]string, error) {
	args := make(map[string]string, len(c.spec.Args))
	for i, a := range c.spec.Args {
		if i >= len(words) {
			break
		}
		if c.lastGreedy(i) {
			args[a.Name] = strings.Join(words[i:], " ")
			return args, nil
		}
		args[a.Name] = words[i]
	}
	if len(words) > len(c.spec.Args) && !c.extra {
		return nil, fmt.Errorf("too many arguments")
	}
	return args, nil
}

// commandContext is handed to a command's Run function.
type commandContext struct {
	sender host.Sender
	args   map[string]string
	input  string
}

func (c *commandContext) Sender() host.Sender { return c.sender }

func (c *commandContext) Arg(name string) (string, bool) {
	v, ok := c.args[name]
	return v, ok
}

// Input returns the command line as typed.
func (c *commandContext) Input() string { return c.input }

// commandTable maps names and aliases to commands.
type commandTable struct {
	mu     sync.RWMutex
	byName map[string]*Command
	all    []*Command
}

func newCommandTable() *commandTable {
	return &commandTable{byName: make(map[string]*Command)}
}

func (t *commandTable) add(c *Command, reserved func(string) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := append([]string{c.spec.Name}, c.aliases...)
	for _, n := range names {
		n = strings.ToLower(n)
		if n == "" {
			return fmt.Errorf("simhost: empty command name")
		}
		if reserved(n) {
			return fmt.Errorf("simhost: /%s is a built-in command", n)
		}
		if _, dup := t.byName[n]; dup {
			return fmt.Errorf("simhost: /%s already registered", n)
		}
	}
	for _, n := range names {
		t.byName[strings.ToLower(n)] = c
	}
	t.all = append(t.all, c)
	return nil
}

func (t *commandTable) lookup(name string) (*Command, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byName[strings.ToLower(name)]
	return c, ok
}

func (t *commandTable) list() []*Command {
	t.mu.RLock()
	out := append([]*Command(nil), t.all...)
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].spec.Name < out[j].spec.Name })
	return out
}

// run executes a module command line. words[0] is the command name.
func (c *Command) run(sender host.Sender, words []string, line string) {
	cmd := c
	rest := words[1:]
	if len(cmd.subs) > 0 && len(rest) > 0 {
		for _, sub := range cmd.subs {
			if strings.EqualFold(sub.spec.Name, rest[0]) {
				cmd, rest = sub, rest[1:]
				break
			}
		}
	}
	if cmd.spec.Run == nil {
		sender.SendMessage(host.Raw("Usage: " + c.Usage()))
		return
	}
	if len(cmd.subs) > 0 {
		// No subcommand matched; the parent reports its own usage.
		rest = nil
	}
	args, err := cmd.bind(rest)
	if err != nil {
		sender.SendMessage(host.Raw("Too many arguments. Usage: " + cmd.Usage()))
		return
	}
	cmd.spec.Run(&commandContext{sender: sender, args: args, input: line})
}
