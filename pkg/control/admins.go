package control

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// resolveTarget turns a UUID or an online player name into an identity.
// name is empty when the player is offline.
func (p *Plane) resolveTarget(arg string) (id uuid.UUID, name string, err error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return uuid.Nil, "", ErrInvalidInput
	}
	if parsed, perr := uuid.Parse(arg); perr == nil {
		if pl, ok := p.host.PlayerByID(parsed); ok {
			name = pl.Username()
		}
		return parsed, name, nil
	}
	pl, ok := p.host.PlayerByName(arg)
	if !ok {
		return uuid.Nil, "", fmt.Errorf("player %q: %w", arg, ErrNotFound)
	}
	return pl.UUID(), pl.Username(), nil
}

func describe(id uuid.UUID, name string) string {
	if name == "" {
		return id.String()
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

func (p *Plane) targetFailure(err error, usage string) Outcome {
	if errors.Is(err, ErrInvalidInput) {
		return p.fail(err, usage)
	}
	return p.fail(err, "Player not found (online). Use the UUID for offline players.")
}

// AddChatAdmin adds a player, by online name or UUID, to the allowlist.
// Adding an existing member succeeds without change.
func (p *Plane) AddChatAdmin(actor host.Sender, target string) Outcome {
	if !p.canManageAdmins(actor) {
		return p.deny(actor, "chatadmin")
	}
	id, name, err := p.resolveTarget(target)
	if err != nil {
		return p.targetFailure(err, "Usage: /chatadmin add <player|uuid>")
	}
	if !p.addAdmin(id) {
		return p.ok(describe(id, name) + " is already a chatadmin.")
	}
	p.log.Info("chat admin added", zap.Stringer("admin", id), zap.Stringer("by", identity(actor)))
	p.record(actor, "chatadmin.add", id.String(), name)
	return p.okColored("green", "Added "+describe(id, name)+" as chatadmin.")
}

// RemoveChatAdmin removes a player from the allowlist. Removing a
// non-member succeeds without change.
func (p *Plane) RemoveChatAdmin(actor host.Sender, target string) Outcome {
	if !p.canManageAdmins(actor) {
		return p.deny(actor, "chatadmin")
	}
	id, name, err := p.resolveTarget(target)
	if err != nil {
		return p.targetFailure(err, "Usage: /chatadmin remove <player|uuid>")
	}
	if !p.removeAdmin(id) {
		return p.ok(describe(id, name) + " is not a chatadmin.")
	}
	p.log.Info("chat admin removed", zap.Stringer("admin", id), zap.Stringer("by", identity(actor)))
	p.record(actor, "chatadmin.remove", id.String(), name)
	return p.okColored("green", "Removed "+describe(id, name)+" from chatadmins.")
}

// ListChatAdmins renders the allowlist with the names of online members.
func (p *Plane) ListChatAdmins(actor host.Sender) Outcome {
	if !p.canManageAdmins(actor) {
		return p.deny(actor, "chatadmin")
	}
	ids := p.Admins()
	if len(ids) == 0 {
		return p.ok("ChatAdmins: (empty)")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "ChatAdmins (%d):", len(ids))
	for _, id := range ids {
		sb.WriteString("\n- ")
		sb.WriteString(id.String())
		if pl, ok := p.host.PlayerByID(id); ok {
			sb.WriteString(" (" + pl.Username() + ")")
		}
	}
	return p.ok(sb.String())
}
