package simhost

import (
	"strings"
	"testing"

	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

func TestAccountID(t *testing.T) {
	h := newTestHost(t, "alice")
	acct, _ := h.Config().Account("alice")
	if AccountID(acct) != AccountID(acct) {
		t.Fatal("name based ids must be stable")
	}
	fixed := uuid.New()
	acct.UUID = fixed.String()
	if AccountID(acct) != fixed {
		t.Error("configured uuid must be used")
	}
}

func TestLoginFiresConnectOnce(t *testing.T) {
	h := newTestHost(t, "alice", "bob")
	var joins []string
	if err := h.Registry().Register(0, KindConnect, func(ev any) {
		joins = append(joins, ev.(*ConnectEvent).Player.Username())
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	var leaves []string
	if err := h.Registry().Register(0, KindDisconnect, func(ev any) {
		leaves = append(leaves, ev.(*DisconnectEvent).Player.Username())
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	bobSess, _ := login(t, h, "bob")
	s1, alice := login(t, h, "alice")
	s2, again := login(t, h, "alice")
	if alice != again {
		t.Fatal("a second session must share the player")
	}
	if strings.Join(joins, ",") != "bob,alice" {
		t.Errorf("unexpected connect events %v", joins)
	}
	if !bobSess.has("alice joined the server.") {
		t.Errorf("bob was not told about alice: %s", joined(bobSess.texts()))
	}
	if h.Players().Count() != 2 || len(h.Players().Sessions(alice.UUID())) != 2 {
		t.Fatalf("unexpected universe state")
	}

	h.Logout(s1.Session)
	if _, ok := h.Players().PlayerByUUID(alice.UUID()); !ok {
		t.Fatal("alice must stay online while a session remains")
	}
	if len(leaves) != 0 {
		t.Errorf("no disconnect expected while a session remains, got %v", leaves)
	}
	h.Logout(s2.Session)
	if _, ok := h.Players().PlayerByUsername("ALICE"); ok {
		t.Fatal("alice must go offline with the last session")
	}
	if strings.Join(leaves, ",") != "alice" {
		t.Errorf("unexpected disconnect events %v", leaves)
	}
	if bobSess.last() != "alice left the server." {
		t.Errorf("unexpected last notice %q", bobSess.last())
	}
	if h.Bus().PlayerSubscribers(alice.UUID()) != 0 {
		t.Error("sessions must be unsubscribed")
	}
}

func TestRegisterRejectsUnknownKind(t *testing.T) {
	h := newTestHost(t)
	if err := h.Registry().Register(0, "PlayerJoinEvent", func(any) {}); err == nil {
		t.Error("unknown kinds must be rejected")
	}
	if err := h.Registry().Register(0, KindChat, nil); err == nil {
		t.Error("nil handlers must be rejected")
	}
}

func TestListenerPriorityOrder(t *testing.T) {
	h := newTestHost(t)
	var order []string
	add := func(prio int16, name string) {
		h.Registry().Register(prio, KindChat, func(any) { order = append(order, name) })
	}
	add(0, "normal")
	add(-10, "early")
	add(10, "late")
	add(0, "normal2")
	h.Registry().Register(5, KindChat, func(any) { panic("boom") })

	h.Registry().Fire(KindChat, &host.ChatEvent{})
	if got := strings.Join(order, ","); got != "early,normal,normal2,late" {
		t.Errorf("unexpected order %s", got)
	}
}

func TestChatDefaultDeliversToAll(t *testing.T) {
	h := newTestHost(t, "alice", "bob")
	a, alice := login(t, h, "alice")
	b, _ := login(t, h, "bob")
	b.reset()

	h.Chat(alice, "hello there")
	for _, c := range []*capture{a, b} {
		chats := c.ofType(events.EvChat)
		if len(chats) != 1 || chats[0].Message.String() != "<alice> hello there" {
			t.Fatalf("unexpected chat events %+v", chats)
		}
		if chats[0].Source != alice.UUID() || chats[0].Data["sender_name"] != "alice" {
			t.Errorf("chat event must carry its sender, got %+v", chats[0])
		}
	}
}

func TestChatListenerFiltersAndCancels(t *testing.T) {
	h := newTestHost(t, "alice", "bob")
	a, alice := login(t, h, "alice")
	b, bob := login(t, h, "bob")
	b.reset()

	cancel := false
	h.Registry().Register(0, KindChat, func(ev any) {
		ce := ev.(*host.ChatEvent)
		if cancel {
			ce.Cancel()
			return
		}
		kept := ce.Targets[:0]
		for _, ref := range ce.Targets {
			if ref.UUID() != bob.UUID() {
				kept = append(kept, ref)
			}
		}
		ce.Targets = kept
		ce.Formatter = func(viewer host.PlayerRef, content string) host.Message {
			return host.Raw("[" + viewer.Username() + "] " + content)
		}
	})

	h.Chat(alice, "psst")
	if len(b.ofType(events.EvChat)) != 0 {
		t.Error("bob was filtered out")
	}
	if got := a.ofType(events.EvChat); len(got) != 1 || got[0].Message.String() != "[alice] psst" {
		t.Errorf("unexpected delivery %+v", got)
	}

	cancel = true
	a.reset()
	h.Chat(alice, "nobody hears")
	if len(a.ofType(events.EvChat)) != 0 {
		t.Error("cancelled lines must not be delivered")
	}
}

func TestCommandDispatchAndArgs(t *testing.T) {
	h := newTestHost(t, "alice")
	a, alice := login(t, h, "alice")

	var gotArgs map[string]string
	var gotInput string
	cmd := h.NewCommand(host.CommandSpec{
		Name: "shout",
		Args: []host.ArgSpec{
			{Name: "target"},
			{Name: "text", Type: argTypes.GreedyString},
		},
		Run: func(ctx host.CommandContext) {
			target, _ := ctx.Arg("target")
			text, _ := ctx.Arg("text")
			gotArgs = map[string]string{"target": target, "text": text}
			gotInput = ctx.(*commandContext).Input()
			ctx.Sender().SendMessage(host.Raw("ok"))
		},
	}).(*Command)
	cmd.AddAliases("sh")
	if err := h.RegisterCommand(cmd); err != nil {
		t.Fatalf("RegisterCommand: %v", err)
	}

	h.Dispatch(alice, a.Session, "/SH bob hello   world")
	if gotArgs["target"] != "bob" || gotArgs["text"] != "hello world" {
		t.Errorf("unexpected args %v", gotArgs)
	}
	if gotInput != "/SH bob hello   world" {
		t.Errorf("raw input must be kept, got %q", gotInput)
	}
	if a.last() != "ok" {
		t.Errorf("unexpected reply %q", a.last())
	}

	h.Dispatch(alice, a.Session, "/nosuch")
	if !strings.HasPrefix(a.last(), "Unknown command /nosuch") {
		t.Errorf("unexpected reply %q", a.last())
	}
}

func TestExtraArgsNeedOptIn(t *testing.T) {
	h := newTestHost(t, "alice")
	a, alice := login(t, h, "alice")
	ran := 0
	cmd := h.NewCommand(host.CommandSpec{
		Name: "radius",
		Args: []host.ArgSpec{{Name: "n"}},
		Run:  func(host.CommandContext) { ran++ },
	}).(*Command)
	h.RegisterCommand(cmd)

	h.Dispatch(alice, a.Session, "/radius 5 6")
	if ran != 0 || !strings.HasPrefix(a.last(), "Too many arguments. Usage: /radius <n>") {
		t.Errorf("extra words must be refused, ran=%d reply=%q", ran, a.last())
	}
	cmd.SetAllowExtraArgs(true)
	h.Dispatch(alice, a.Session, "/radius 5 6")
	if ran != 1 {
		t.Error("extra words are accepted after opting in")
	}
}

func TestSubcommands(t *testing.T) {
	h := newTestHost(t, "alice")
	a, alice := login(t, h, "alice")
	var hit string
	cmd := h.NewCommand(host.CommandSpec{
		Name: "admin",
		Subcommands: []host.CommandSpec{
			{Name: "add", Args: []host.ArgSpec{{Name: "player"}}, Run: func(ctx host.CommandContext) {
				p, _ := ctx.Arg("player")
				hit = "add " + p
			}},
		},
		Run: func(ctx host.CommandContext) { hit = "parent" },
	}).(*Command)
	h.RegisterCommand(cmd)

	h.Dispatch(alice, a.Session, "/admin add bob")
	if hit != "add bob" {
		t.Errorf("unexpected dispatch %q", hit)
	}
	h.Dispatch(alice, a.Session, "/admin bogus words here")
	if hit != "parent" {
		t.Errorf("unmatched subcommands go to the parent, got %q", hit)
	}
	if got := cmd.subs[0].Usage(); got != "/admin add <player>" {
		t.Errorf("unexpected usage %q", got)
	}
}

func TestRegisterCommandConflicts(t *testing.T) {
	h := newTestHost(t)
	if err := h.RegisterCommand(h.NewCommand(host.CommandSpec{Name: "who"})); err == nil {
		t.Error("built-in names are reserved")
	}
	first := h.NewCommand(host.CommandSpec{Name: "one"}).(*Command)
	first.AddAliases("x")
	if err := h.RegisterCommand(first); err != nil {
		t.Fatalf("RegisterCommand: %v", err)
	}
	second := h.NewCommand(host.CommandSpec{Name: "two"}).(*Command)
	second.AddAliases("X")
	if err := h.RegisterCommand(second); err == nil {
		t.Error("aliases must not collide")
	}
	if err := h.RegisterCommand("not a command"); err == nil {
		t.Error("foreign objects must be refused")
	}
}

func TestTeleportAndWorld(t *testing.T) {
	h := newTestHost(t, "alice")
	a, alice := login(t, h, "alice")

	h.Dispatch(alice, a.Session, "/tp 10 64 -3.5")
	if pos := alice.Position(); pos != (Position{X: 10, Y: 64, Z: -3.5}) {
		t.Errorf("unexpected position %+v", pos)
	}
	moves := a.ofType(events.EvMove)
	if len(moves) != 1 || moves[0].Data["z"] != -3.5 {
		t.Fatalf("expected a move event, got %+v", moves)
	}

	h.Dispatch(alice, a.Session, "/tp 1 two 3")
	if a.last() != "Not a number: two" {
		t.Errorf("unexpected reply %q", a.last())
	}

	h.Dispatch(alice, a.Session, "/world NETHER")
	if alice.World() != "nether" {
		t.Errorf("expected nether, got %s", alice.World())
	}
	h.Dispatch(alice, a.Session, "/world moon")
	if a.last() != "No world named moon." {
		t.Errorf("unexpected reply %q", a.last())
	}
}

func TestWhoAndConsole(t *testing.T) {
	h := newTestHost(t, "alice", "bob")
	a, alice := login(t, h, "alice")
	login(t, h, "bob")

	h.Dispatch(alice, a.Session, "/who")
	who := a.ofType(events.EvWho)
	if len(who) != 1 || !strings.HasPrefix(who[0].Message.String(), "Players online (2):") {
		t.Fatalf("unexpected who %+v", who)
	}

	var out strings.Builder
	h.Console().SetOutput(&out)
	h.RunConsole("tp 1 2 3")
	if !strings.Contains(out.String(), "Only players can do that.") {
		t.Errorf("unexpected console output %q", out.String())
	}
}

func TestHandleLineNeedsLogin(t *testing.T) {
	h := newTestHost(t)
	c := newCapture(h)
	h.HandleLine(c.Session, "hello")
	if !strings.HasPrefix(c.last(), "You are not connected") {
		t.Errorf("unexpected reply %q", c.last())
	}
}

func TestPlayerPermissionsFromConfig(t *testing.T) {
	h := newTestHost(t, "alice")
	_, alice := login(t, h, "alice")
	if alice.HasPermission("localchat.radius") {
		t.Fatal("nothing granted yet")
	}
	cfg := testConfig(t, "alice")
	cfg.Grants = map[string][]string{"alice": {"localchat.*"}}
	cfg.Operators = []string{"Alice"}
	h.Apply(cfg)
	if !alice.HasPermission("localchat.radius") {
		t.Error("reloaded grants must apply")
	}
	if !h.Players().IsOperator(alice.UUID()) {
		t.Error("operators are matched by name")
	}
}
