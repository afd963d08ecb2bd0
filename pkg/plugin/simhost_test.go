package plugin_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/crystal-mush/localchat/pkg/chatstate"
	"github.com/crystal-mush/localchat/pkg/config"
	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/crystal-mush/localchat/pkg/plugin"
	"github.com/crystal-mush/localchat/pkg/simhost"
)

// inbox is a session that records the text of every event it receives.
type inbox struct {
	*simhost.Session
	mu    sync.Mutex
	lines []string
}

func newInbox(id int) *inbox {
	in := &inbox{Session: &simhost.Session{ID: id, Addr: "test"}}
	record := func(msg host.Message) {
		in.mu.Lock()
		in.lines = append(in.lines, msg.String())
		in.mu.Unlock()
	}
	in.SendFunc = record
	in.ReceiveFunc = func(ev events.Event) { record(ev.Message) }
	return in
}

func (in *inbox) has(text string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, l := range in.lines {
		if l == text {
			return true
		}
	}
	return false
}

func (in *inbox) dump() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return strings.Join(in.lines, " | ")
}

type world struct {
	h   *simhost.Host
	plg *plugin.Plugin
	n   int
}

func newWorld(t *testing.T, names ...string) *world {
	t.Helper()
	cfg := config.Default()
	for _, n := range names {
		cfg.Accounts = append(cfg.Accounts, config.Account{Username: n})
	}
	h := simhost.New(cfg, simhost.Options{Plain: true})
	plg := plugin.New(h, cfg, plugin.Options{})
	if err := plg.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { plg.Close() })
	return &world{h: h, plg: plg}
}

func (w *world) join(t *testing.T, name string) (*inbox, *simhost.Player) {
	t.Helper()
	acct, ok := w.h.Config().Account(name)
	if !ok {
		t.Fatalf("no account %s", name)
	}
	w.n++
	in := newInbox(w.n)
	return in, w.h.Login(in.Session, acct)
}

func TestPluginOnSimulatedHost(t *testing.T) {
	w := newWorld(t, "alice", "bob", "carol")
	if w.plg.JoinKind() != simhost.KindConnect {
		t.Fatalf("join kind %q", w.plg.JoinKind())
	}
	if w.plg.LeaveKind() != simhost.KindDisconnect {
		t.Fatalf("leave kind %q", w.plg.LeaveKind())
	}
	if w.h.Registry().Listeners(simhost.KindChat) != 1 {
		t.Fatal("chat listener not registered")
	}
	for _, name := range []string{"g", "l", "msg", "chatadmin", "clearchat"} {
		found := false
		for _, c := range w.h.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("/%s not registered", name)
		}
	}

	a, alice := w.join(t, "alice")
	b, _ := w.join(t, "bob")
	c, carol := w.join(t, "carol")
	carol.MoveTo("", simhost.Position{X: 100})

	w.h.Chat(alice, "hi")
	if !b.has("[L] alice: hi") || !a.has("[L] alice: hi") {
		t.Errorf("local line missing: alice=%s bob=%s", a.dump(), b.dump())
	}
	if c.has("[L] alice: hi") {
		t.Error("carol is out of range")
	}

	w.h.Dispatch(alice, a.Session, "/g")
	w.h.Chat(alice, "hello all")
	if !c.has("[G] alice: hello all") {
		t.Errorf("global line missing for carol: %s", c.dump())
	}

	w.h.Dispatch(alice, a.Session, "/msg bob hello   there")
	if !b.has("[From alice] hello   there") {
		t.Errorf("pm missing: %s", b.dump())
	}
	if !a.has("[To bob] hello   there") {
		t.Errorf("pm echo missing: %s", a.dump())
	}
}

func TestPluginForgetsPlayerOnLeave(t *testing.T) {
	w := newWorld(t, "alice")
	a, alice := w.join(t, "alice")
	w.h.Dispatch(alice, a.Session, "/g")
	store := w.plg.Plane().Store()
	store.ToggleDebug(alice.UUID())
	if store.Mode(alice.UUID()) != chatstate.Global || !store.Debug(alice.UUID()) {
		t.Fatal("expected global mode with debug on")
	}

	w.h.Logout(a.Session)
	if store.Mode(alice.UUID()) != chatstate.Local || store.Debug(alice.UUID()) {
		t.Error("leaving must drop the stored mode and debug flag")
	}
}

func TestPluginJoinResetsMode(t *testing.T) {
	w := newWorld(t, "alice", "bob")
	a, alice := w.join(t, "alice")
	w.h.Dispatch(alice, a.Session, "/g")
	w.h.Logout(a.Session)

	a2, alice := w.join(t, "alice")
	b, bob := w.join(t, "bob")
	bob.MoveTo("nether", simhost.Position{})

	w.h.Chat(alice, "back")
	if !a2.has("[L] alice: back") {
		t.Errorf("rejoin should start in local chat: %s", a2.dump())
	}
	if b.has("[L] alice: back") {
		t.Error("other worlds are out of range")
	}
}
