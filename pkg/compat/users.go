package compat

import (
	"reflect"
	"strings"

	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

var (
	enumerateNames = []string{"OnlinePlayers", "Players", "GetPlayers", "GetOnlinePlayers"}
	byNameNames    = []string{
		"PlayerByUsername", "GetPlayerByUsername", "FindPlayerByUsername",
		"PlayerByName", "GetPlayerByName", "FindPlayerByName",
	}
	senderNameNames  = []string{"Username", "Name", "DisplayName", "GetUsername", "GetName"}
	eventPlayerNames = []string{"Player", "GetPlayer", "Sender", "GetSender"}

	uuidType      = reflect.TypeOf(uuid.UUID{})
	playerRefType = reflect.TypeOf((*host.PlayerRef)(nil)).Elem()
)

type enumerateFunc func() []host.PlayerRef

// OnlinePlayers lists the connected players. It returns nil when the host
// universe has no usable accessor.
func (a *Adapter) OnlinePlayers() []host.PlayerRef {
	u := reflect.ValueOf(a.universe)
	b := resolve(a, OpEnumerateUsers, reflect.TypeOf(a.universe), func() (enumerateFunc, bool) {
		for _, name := range enumerateNames {
			m, ok := method(u, name)
			if !ok || m.Type().NumIn() != 0 || m.Type().NumOut() < 1 || !iterable(m.Type().Out(0)) {
				continue
			}
			return func() []host.PlayerRef {
				outs, err := safeCall(m)
				if err != nil {
					return nil
				}
				first, ok := outcome(outs)
				if !ok {
					return nil
				}
				return collectPlayers(first)
			}, true
		}
		return nil, false
	})
	if !b.Available {
		return nil
	}
	return b.Fn()
}

// iterable reports whether t is a slice, array, map or iter.Seq shaped func.
func iterable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	case reflect.Func:
		return isSeq(t)
	}
	return false
}

func isSeq(t reflect.Type) bool {
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}
	y := t.In(0)
	return y.Kind() == reflect.Func && y.NumIn() == 1 && y.NumOut() == 1 && y.Out(0).Kind() == reflect.Bool
}

// collectPlayers keeps the elements of v that are player handles.
func collectPlayers(v reflect.Value) []host.PlayerRef {
	if isNil(v) {
		return nil
	}
	var out []host.PlayerRef
	add := func(e reflect.Value) {
		if isNil(e) || !e.CanInterface() {
			return
		}
		if p, ok := e.Interface().(host.PlayerRef); ok {
			out = append(out, p)
		}
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			add(v.Index(i))
		}
	case reflect.Map:
		it := v.MapRange()
		for it.Next() {
			add(it.Value())
		}
	case reflect.Func:
		if !isSeq(v.Type()) {
			return nil
		}
		yt := v.Type().In(0)
		yield := reflect.MakeFunc(yt, func(args []reflect.Value) []reflect.Value {
			add(args[0])
			return []reflect.Value{reflect.ValueOf(true)}
		})
		if _, err := safeCall(v, yield); err != nil {
			return out
		}
	}
	return out
}

// asPlayer converts the result of a lookup into a player handle.
func asPlayer(outs []reflect.Value, err error) (host.PlayerRef, bool) {
	if err != nil {
		return nil, false
	}
	first, ok := outcome(outs)
	if !ok || isNil(first) || !first.CanInterface() {
		return nil, false
	}
	p, ok := first.Interface().(host.PlayerRef)
	return p, ok
}

type byNameFunc func(name string) (host.PlayerRef, bool)

// PlayerByName resolves an online player by username. Exact host lookups are
// tried before a case-insensitive scan of OnlinePlayers.
func (a *Adapter) PlayerByName(name string) (host.PlayerRef, bool) {
	if name == "" {
		return nil, false
	}
	u := reflect.ValueOf(a.universe)
	b := resolve(a, OpResolveByName, reflect.TypeOf(a.universe), func() (byNameFunc, bool) {
		for _, mname := range byNameNames {
			m, ok := method(u, mname)
			if !ok {
				continue
			}
			t := m.Type()
			if t.NumIn() != 1 || t.In(0).Kind() != reflect.String || t.NumOut() < 1 {
				continue
			}
			return func(name string) (host.PlayerRef, bool) {
				return asPlayer(safeCall(m, reflect.ValueOf(name).Convert(t.In(0))))
			}, true
		}
		return nil, false
	})
	if b.Available {
		if p, ok := b.Fn(name); ok {
			return p, true
		}
	}
	for _, p := range a.OnlinePlayers() {
		if strings.EqualFold(p.Username(), name) {
			return p, true
		}
	}
	return nil, false
}

type byIDFunc func(id uuid.UUID) (host.PlayerRef, bool)

// PlayerByID resolves an online player by UUID, falling back to a scan of
// OnlinePlayers.
func (a *Adapter) PlayerByID(id uuid.UUID) (host.PlayerRef, bool) {
	if id == uuid.Nil {
		return nil, false
	}
	u := reflect.ValueOf(a.universe)
	b := resolve(a, OpResolveByID, reflect.TypeOf(a.universe), func() (byIDFunc, bool) {
		if !u.IsValid() {
			return nil, false
		}
		pt := addressable(u).Type()
		for i := 0; i < pt.NumMethod(); i++ {
			name := pt.Method(i).Name
			if !strings.Contains(strings.ToLower(name), "player") {
				continue
			}
			m, ok := method(u, name)
			if !ok {
				continue
			}
			mt := m.Type()
			if mt.NumIn() != 1 || mt.In(0) != uuidType || mt.NumOut() < 1 {
				continue
			}
			return func(id uuid.UUID) (host.PlayerRef, bool) {
				return asPlayer(safeCall(m, reflect.ValueOf(id)))
			}, true
		}
		return nil, false
	})
	if b.Available {
		if p, ok := b.Fn(id); ok {
			return p, true
		}
	}
	for _, p := range a.OnlinePlayers() {
		if p.UUID() == id {
			return p, true
		}
	}
	return nil, false
}

// SenderName returns a display name for a command sender or player handle.
func (a *Adapter) SenderName(sender any) string {
	v := reflect.ValueOf(sender)
	if isNil(v) {
		return "unknown"
	}
	b := resolve(a, OpSenderName, v.Type(), func() (string, bool) {
		for _, name := range senderNameNames {
			if m, ok := method(v, name); ok {
				t := m.Type()
				if t.NumIn() == 0 && t.NumOut() >= 1 && t.Out(0).Kind() == reflect.String {
					return name, true
				}
				continue
			}
			if f, ok := field(v, name); ok && f.Kind() == reflect.String {
				return name, true
			}
		}
		return "", false
	})
	if b.Available {
		if val, ok := member(v, b.Fn); ok && val.Kind() == reflect.String && val.String() != "" {
			return val.String()
		}
	}
	if s, ok := sender.(host.Sender); ok {
		if p, ok := a.PlayerByID(s.UUID()); ok && p.Username() != "" {
			return p.Username()
		}
	}
	return "unknown"
}

// EventPlayer extracts the player an event is about, e.g. the joining
// player of a connect event.
func (a *Adapter) EventPlayer(ev any) (host.PlayerRef, bool) {
	if p, ok := ev.(host.PlayerRef); ok {
		return p, true
	}
	v := reflect.ValueOf(ev)
	if isNil(v) {
		return nil, false
	}
	b := resolve(a, OpEventPlayer, v.Type(), func() (string, bool) {
		for _, name := range eventPlayerNames {
			if m, ok := method(v, name); ok {
				t := m.Type()
				if t.NumIn() == 0 && t.NumOut() >= 1 && (t.Out(0).Implements(playerRefType) || t.Out(0).Kind() == reflect.Interface) {
					return name, true
				}
				continue
			}
			if f, ok := field(v, name); ok && (f.Type().Implements(playerRefType) || f.Kind() == reflect.Interface) {
				return name, true
			}
		}
		return "", false
	})
	if !b.Available {
		return nil, false
	}
	val, ok := member(v, b.Fn)
	if !ok || !val.CanInterface() {
		return nil, false
	}
	p, ok := val.Interface().(host.PlayerRef)
	return p, ok
}
