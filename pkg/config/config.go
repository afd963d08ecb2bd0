// Package config loads the localchat server configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Account is a login for the reference host. Password is a bcrypt hash.
type Account struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UUID     string `yaml:"uuid"`
}

// Config holds server-level configuration parameters.
type Config struct {
	// --- Identity ---
	Name string `yaml:"name"`

	// --- Network ---
	Port           int    `yaml:"port"`     // Line transport (telnet style)
	WebHost        string `yaml:"web_host"` // Bind address (empty = all interfaces)
	WebPort        int    `yaml:"web_port"` // REST + websocket
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// --- Auth ---
	JWTSecret string    `yaml:"jwt_secret"` // Generated at startup if empty
	JWTExpiry int       `yaml:"jwt_expiry"` // Seconds (default 86400)
	Accounts  []Account `yaml:"accounts"`

	// --- Storage ---
	AuditDB             string `yaml:"audit_db"`
	TranscriptDB        string `yaml:"transcript_db"`         // Empty disables the transcript
	TranscriptRetention int    `yaml:"transcript_retention"`  // Seconds (default 86400)
	TranscriptPurge     string `yaml:"transcript_purge_spec"` // Cron spec for the purge job
	ArchiveDir          string `yaml:"archive_dir"`
	ArchiveSpec         string `yaml:"archive_spec"`   // Cron spec for snapshots (empty = off)
	ArchiveRetain       int    `yaml:"archive_retain"` // Archives kept (0 = all)

	// --- Chat ---
	LocalRadius    int    `yaml:"local_radius"`
	WarningMinutes int    `yaml:"warning_minutes"` // 0 = disabled
	WarningText    string `yaml:"warning_text"`
	ClearLines     int    `yaml:"clear_lines"`

	// --- Permissions ---
	Operators  []string            `yaml:"operators"`   // Usernames or UUIDs
	ChatAdmins []string            `yaml:"chat_admins"` // UUIDs seeded into the allowlist
	Grants     map[string][]string `yaml:"grants"`      // Username -> permission nodes

	// --- World ---
	Worlds       []string `yaml:"worlds"`
	DefaultWorld string   `yaml:"default_world"`
}

// Default returns a Config with the stock values.
func Default() *Config {
	return &Config{
		Name:                "localchat",
		Port:                6250,
		WebPort:             8080,
		MetricsEnabled:      true,
		JWTExpiry:           86400,
		AuditDB:             "data/audit.db",
		TranscriptDB:        "data/transcript.db",
		TranscriptRetention: 86400,
		TranscriptPurge:     "@hourly",
		ArchiveDir:          "data/archive",
		ArchiveRetain:       7,
		LocalRadius:         50,
		WarningText:         "Reminder: keep the chat respectful. Spam, insults and advertising are not allowed.",
		ClearLines:          120,
		Worlds:              []string{"overworld", "nether"},
		DefaultWorld:        "overworld",
	}
}

// Load reads a YAML config file over the defaults. Relative storage paths
// are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for _, p := range []*string{&c.AuditDB, &c.TranscriptDB, &c.ArchiveDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.WebPort < 0 || c.WebPort > 65535 {
		return fmt.Errorf("web_port %d out of range", c.WebPort)
	}
	if c.LocalRadius < 0 {
		return fmt.Errorf("local_radius must be 0 or more, got %d", c.LocalRadius)
	}
	if c.ArchiveRetain < 0 {
		return fmt.Errorf("archive_retain must be 0 or more, got %d", c.ArchiveRetain)
	}
	if c.WarningMinutes < 0 {
		return fmt.Errorf("warning_minutes must be 0 or more, got %d", c.WarningMinutes)
	}
	for _, s := range c.ChatAdmins {
		if _, err := uuid.Parse(s); err != nil {
			return fmt.Errorf("chat_admins: %q is not a UUID", s)
		}
	}
	for _, a := range c.Accounts {
		if a.Username == "" {
			return fmt.Errorf("accounts: missing username")
		}
		if a.UUID != "" {
			if _, err := uuid.Parse(a.UUID); err != nil {
				return fmt.Errorf("accounts: %s: bad uuid %q", a.Username, a.UUID)
			}
		}
	}
	if c.DefaultWorld == "" && len(c.Worlds) > 0 {
		c.DefaultWorld = c.Worlds[0]
	}
	return nil
}

// AdminIDs returns the parsed chat-admin allowlist.
func (c *Config) AdminIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(c.ChatAdmins))
	for _, s := range c.ChatAdmins {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// IsOperator reports whether name or id appears in the operator list.
func (c *Config) IsOperator(name string, id uuid.UUID) bool {
	for _, op := range c.Operators {
		if strings.EqualFold(op, name) {
			return true
		}
		if parsed, err := uuid.Parse(op); err == nil && parsed == id {
			return true
		}
	}
	return false
}

// Granted reports whether the user name was granted node. A grant ending in
// ".*" covers every node below it and "*" covers everything.
func (c *Config) Granted(name, node string) bool {
	for user, nodes := range c.Grants {
		if !strings.EqualFold(user, name) {
			continue
		}
		for _, g := range nodes {
			if g == "*" || g == node {
				return true
			}
			if prefix, ok := strings.CutSuffix(g, ".*"); ok && strings.HasPrefix(node, prefix+".") {
				return true
			}
		}
	}
	return false
}

// Account returns the account with the given username.
func (c *Config) Account(username string) (Account, bool) {
	for _, a := range c.Accounts {
		if strings.EqualFold(a.Username, username) {
			return a, true
		}
	}
	return Account{}, false
}

// TokenExpiry returns the JWT lifetime.
func (c *Config) TokenExpiry() time.Duration {
	if c.JWTExpiry <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.JWTExpiry) * time.Second
}

// Retention returns how long transcript lines are kept.
func (c *Config) Retention() time.Duration {
	if c.TranscriptRetention <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.TranscriptRetention) * time.Second
}
