// Package plugin wires the chat engine and the control plane into a host
// platform: event listeners, commands and their lifecycle.
package plugin

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/crystal-mush/localchat/pkg/chat"
	"github.com/crystal-mush/localchat/pkg/chatstate"
	"github.com/crystal-mush/localchat/pkg/compat"
	"github.com/crystal-mush/localchat/pkg/config"
	"github.com/crystal-mush/localchat/pkg/control"
	"github.com/crystal-mush/localchat/pkg/host"
	"go.uber.org/zap"
)

// Event kinds the plugin listens for.
const (
	ChatEventKind = "PlayerChatEvent"
)

// JoinEventKinds are tried in order; the first one the host accepts
// carries the join reset.
var JoinEventKinds = []string{"PlayerJoinEvent", "PlayerConnectEvent", "PlayerLoginEvent", "PlayerReadyEvent"}

// LeaveEventKinds are tried in order; the first one the host accepts drops
// the player's stored preferences.
var LeaveEventKinds = []string{"PlayerQuitEvent", "PlayerDisconnectEvent", "PlayerLeaveEvent"}

// Options configures a Plugin.
type Options struct {
	Logger  *zap.Logger
	Auditor control.Auditor
	Metrics *Metrics
	// WarningUnit overrides the length of one warning minute.
	WarningUnit time.Duration
}

// Plugin is one installed instance of local chat.
type Plugin struct {
	platform host.Platform
	cfg      *config.Config
	adapter  *compat.Adapter
	store    *chatstate.Store
	engine   *chat.Engine
	plane    *control.Plane
	metrics  *Metrics
	auditor  control.Auditor
	log      *zap.Logger

	joinKind  string
	leaveKind string
}

// New builds the adapter, state store, chat engine and control plane for
// platform. Nothing is registered until Setup.
func New(platform host.Platform, cfg *config.Config, opts Options) *Plugin {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	p := &Plugin{
		platform: platform,
		cfg:      cfg,
		metrics:  opts.Metrics,
		auditor:  opts.Auditor,
		log:      logger.Named("plugin"),
	}

	adapterOpts := compat.Options{Logger: logger}
	if p.metrics != nil {
		adapterOpts.OnResolve = p.metrics.CapabilityResolved
	}
	p.adapter = compat.New(platform, adapterOpts)
	p.store = chatstate.New()
	p.plane = control.New(p.adapter, p.store, control.Options{
		Logger:      logger,
		Auditor:     opts.Auditor,
		Radius:      cfg.LocalRadius,
		WarningText: cfg.WarningText,
		ClearLines:  cfg.ClearLines,
		Admins:      cfg.AdminIDs(),
		WarningUnit: opts.WarningUnit,
	})

	engineOpts := chat.Options{
		Logger: logger,
		Radius: p.plane.Radius,
		Markup: p.adapter,
	}
	if p.metrics != nil {
		engineOpts.Recorder = p.metrics
	}
	p.engine = chat.NewEngine(p.store, p.adapter, engineOpts)
	return p
}

// Adapter returns the host capability adapter.
func (p *Plugin) Adapter() *compat.Adapter { return p.adapter }

// Engine returns the chat routing engine.
func (p *Plugin) Engine() *chat.Engine { return p.engine }

// Plane returns the control plane.
func (p *Plugin) Plane() *control.Plane { return p.plane }

// JoinKind returns the join event kind the host accepted, or "" when the
// host has no join signal.
func (p *Plugin) JoinKind() string { return p.joinKind }

// LeaveKind returns the leave event kind the host accepted, or "".
func (p *Plugin) LeaveKind() string { return p.leaveKind }

// Setup registers listeners and commands with the host and starts the
// warning schedule from config. A host that lacks an optional capability
// only loses the matching feature; command registration failures are
// returned together.
func (p *Plugin) Setup() error {
	if p.platform == nil {
		return errors.New("plugin: no host platform")
	}
	if !p.adapter.RegisterListener(ChatEventKind, p.onChat) {
		p.log.Warn("chat listener not registered; chat modes are inactive")
	}
	for _, kind := range JoinEventKinds {
		if p.adapter.RegisterListener(kind, p.onJoin) {
			p.joinKind = kind
			break
		}
	}
	if p.joinKind == "" {
		p.log.Info("host has no join signal; modes keep their lazy default")
	}
	for _, kind := range LeaveEventKinds {
		if p.adapter.RegisterListener(kind, p.onLeave) {
			p.leaveKind = kind
			break
		}
	}

	var errs []error
	for _, c := range p.commands() {
		if err := p.register(c); err != nil {
			errs = append(errs, err)
		}
	}

	if m := p.cfg.WarningMinutes; m > 0 {
		if err := p.plane.ScheduleWarnings(m); err != nil {
			errs = append(errs, fmt.Errorf("plugin: warning schedule: %w", err))
		}
	}
	p.log.Info("local chat ready",
		zap.Int("radius", p.plane.Radius()),
		zap.String("join", p.joinKind),
		zap.Int("admins", len(p.plane.Admins())))
	return errors.Join(errs...)
}

// Apply takes over the reloadable parts of a new config. Only values that
// differ from the previously loaded config are applied, so an unrelated
// edit keeps what /localradius and /chatwarning set at run time.
func (p *Plugin) Apply(cfg *config.Config) {
	if cfg == nil {
		return
	}
	prev := p.cfg
	if cfg.LocalRadius != prev.LocalRadius {
		if err := p.plane.SetRadius(cfg.LocalRadius); err != nil {
			p.log.Warn("reload: radius rejected", zap.Int("radius", cfg.LocalRadius))
		}
	}
	if cfg.WarningText != prev.WarningText {
		p.plane.SetWarningText(cfg.WarningText)
	}
	if cfg.WarningMinutes != prev.WarningMinutes {
		if err := p.plane.ScheduleWarnings(cfg.WarningMinutes); err != nil {
			p.log.Warn("reload: warning schedule", zap.Error(err))
		}
	}
	p.cfg = cfg
}

// Close stops the warning schedule and closes the audit sink when it can
// be closed.
func (p *Plugin) Close() error {
	err := p.plane.Close()
	if c, ok := p.auditor.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (p *Plugin) onChat(ev any) {
	ce, ok := ev.(*host.ChatEvent)
	if !ok || ce == nil || ce.Cancelled {
		return
	}
	mode := p.engine.SenderMode(ce.Sender)
	if ce.Sender != nil {
		if allowed, notice := p.plane.AllowChat(ce.Sender, mode); !allowed {
			ce.Cancel()
			ce.Sender.SendMessage(notice)
			if p.metrics != nil {
				p.metrics.ChatBlocked(mode)
			}
			return
		}
	}
	p.engine.OnChat(ce)
}

func (p *Plugin) onJoin(ev any) {
	pl, ok := p.adapter.EventPlayer(ev)
	if !ok || pl == nil {
		return
	}
	p.store.ResetMode(pl.UUID())
}

func (p *Plugin) onLeave(ev any) {
	pl, ok := p.adapter.EventPlayer(ev)
	if !ok || pl == nil {
		return
	}
	p.store.Forget(pl.UUID())
}
