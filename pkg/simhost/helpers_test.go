package simhost

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crystal-mush/localchat/pkg/config"
	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/crystal-mush/localchat/pkg/host"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "s3cret"

func testConfig(t *testing.T, names ...string) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := config.Default()
	for _, n := range names {
		cfg.Accounts = append(cfg.Accounts, config.Account{Username: n, Password: string(hash)})
	}
	return cfg
}

func newTestHost(t *testing.T, names ...string) *Host {
	t.Helper()
	return New(testConfig(t, names...), Options{Plain: true})
}

// capture is a session without a connection that records what it is sent.
type capture struct {
	*Session

	mu     sync.Mutex
	msgs   []host.Message
	events []events.Event
}

func newCapture(h *Host) *capture {
	c := &capture{Session: &Session{ID: h.universe.nextSessionID(), Addr: "test"}}
	c.SendFunc = func(m host.Message) {
		c.mu.Lock()
		c.msgs = append(c.msgs, m)
		c.mu.Unlock()
	}
	c.ReceiveFunc = func(ev events.Event) {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.msgs = append(c.msgs, ev.Message)
		c.mu.Unlock()
	}
	return c
}

// login connects a fresh capture session as the named account.
func login(t *testing.T, h *Host, name string) (*capture, *Player) {
	t.Helper()
	acct, ok := h.Config().Account(name)
	if !ok {
		t.Fatalf("no account %s", name)
	}
	c := newCapture(h)
	return c, h.Login(c.Session, acct)
}

func (c *capture) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.String()
	}
	return out
}

func (c *capture) last() string {
	texts := c.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (c *capture) has(text string) bool {
	for _, s := range c.texts() {
		if s == text {
			return true
		}
	}
	return false
}

func (c *capture) ofType(typ events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *capture) reset() {
	c.mu.Lock()
	c.msgs, c.events = nil, nil
	c.mu.Unlock()
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func joined(texts []string) string {
	return strings.Join(texts, " | ")
}
