package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.LocalRadius != 50 || c.ClearLines != 120 || c.WarningMinutes != 0 {
		t.Errorf("unexpected chat defaults %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	admin := uuid.New()
	path := filepath.Join(dir, "localchat.yaml")
	writeFile(t, path, `
port: 7000
local_radius: 80
warning_minutes: 15
audit_db: audit.db
operators: [Alice]
chat_admins: ["`+admin.String()+`"]
grants:
  bob: [localchat.command.*]
  carol: ["*"]
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != 7000 || c.LocalRadius != 80 || c.WarningMinutes != 15 {
		t.Errorf("values not loaded: %+v", c)
	}
	if c.ClearLines != 120 {
		t.Errorf("unset fields must keep defaults, got clear_lines=%d", c.ClearLines)
	}
	if c.AuditDB != filepath.Join(dir, "audit.db") {
		t.Errorf("relative path not resolved: %s", c.AuditDB)
	}
	if ids := c.AdminIDs(); len(ids) != 1 || ids[0] != admin {
		t.Errorf("unexpected admin ids %v", ids)
	}
	if !c.IsOperator("alice", uuid.New()) || c.IsOperator("bob", uuid.New()) {
		t.Error("operator lookup by name is wrong")
	}

	tests := []struct {
		user, node string
		want       bool
	}{
		{"Bob", "localchat.command.localradius", true},
		{"bob", "localchat.admin.clearchat", false},
		{"carol", "localchat.admin.clearchat", true},
		{"dave", "localchat.command.chatdebug", false},
	}
	for _, tt := range tests {
		if got := c.Granted(tt.user, tt.node); got != tt.want {
			t.Errorf("Granted(%s, %s) = %v, want %v", tt.user, tt.node, got, tt.want)
		}
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"radius":  "local_radius: -1\n",
		"admins":  "chat_admins: [nope]\n",
		"port":    "port: 70000\n",
		"garbage": "port: [1, 2\n",
	} {
		path := filepath.Join(dir, name+".yaml")
		writeFile(t, path, body)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file must fail")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localchat.yaml")
	writeFile(t, path, "local_radius: 10\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan int, 4)
	if err := Watch(ctx, path, nil, func(c *Config) { got <- c.LocalRadius }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeFile(t, path, "local_radius: 99\n")
	deadline := time.After(3 * time.Second)
	for {
		select {
		case r := <-got:
			if r == 99 {
				return
			}
		case <-deadline:
			t.Fatal("reload not observed")
		}
	}
}
