package compat

import (
	"reflect"

	"github.com/google/uuid"
)

// Permission is the result of a host permission query.
type Permission int

const (
	PermUnknown Permission = iota
	PermAllowed
	PermDenied
)

func (p Permission) String() string {
	switch p {
	case PermAllowed:
		return "allowed"
	case PermDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Resolve collapses the tri-state using the caller's policy for unknown.
func (p Permission) Resolve(allowIfUnknown bool) bool {
	switch p {
	case PermAllowed:
		return true
	case PermDenied:
		return false
	default:
		return allowIfUnknown
	}
}

var (
	relaxSetterNames = []string{
		"SetRequiredPermissionLevel",
		"SetMinPermissionLevel",
		"SetPermissionLevel",
		"SetPermission",
		"SetPermissionNode",
		"SetRequiredPermission",
		"RequirePermission",
	}
	relaxFieldNames = []string{
		"RequiredPermissionLevel",
		"MinPermissionLevel",
		"PermissionLevel",
		"Permission",
		"PermissionNode",
		"RequiredPermission",
	}
	requireSetterNames = []string{
		"SetPermissionNode",
		"SetPermission",
		"SetRequiredPermission",
		"SetRequiredPermissionNode",
		"RequirePermission",
	}
	requireFieldNames = []string{"PermissionNode", "Permission", "RequiredPermission"}
	levelSetterNames  = []string{
		"SetRequiredPermissionLevel",
		"SetMinPermissionLevel",
		"SetPermissionLevel",
		"SetRequiredLevel",
		"SetMinLevel",
	}
	permissionQueryNames = []string{"HasPermission", "HasPermissionNode", "HasPerm", "Permission"}
	operatorQueryNames   = []string{"IsOp", "IsOperator", "IsAdmin", "IsOpped", "Op"}
)

// noRestriction returns the "nothing required" value for a setter or field
// of type t.
func noRestriction(t reflect.Type) (reflect.Value, bool) {
	switch {
	case isIntKind(t.Kind()), t.Kind() == reflect.String:
		return reflect.Zero(t), true
	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.String:
		return reflect.Zero(t), true
	}
	return reflect.Value{}, false
}

// RelaxPermissions clears every permission requirement it can find on a
// host command object. It tries all known setters and fields and never
// fails; a host that offers none enforces nothing extra.
func (a *Adapter) RelaxPermissions(cmd any) {
	v := reflect.ValueOf(cmd)
	if isNil(v) {
		return
	}
	for _, name := range relaxSetterNames {
		m, ok := method(v, name)
		if !ok || m.Type().NumIn() != 1 || m.Type().IsVariadic() {
			continue
		}
		val, ok := noRestriction(m.Type().In(0))
		if !ok {
			continue
		}
		_, _ = safeCall(m, val)
	}
	for _, name := range relaxFieldNames {
		f, ok := field(v, name)
		if !ok {
			continue
		}
		if val, ok := noRestriction(f.Type()); ok && f.CanSet() {
			f.Set(val)
		}
	}
}

// RequirePermissionNode asks the host to require node for cmd. The first
// matching setter wins; otherwise the node is written into a same-named
// string field. It reports whether anything accepted the node.
func (a *Adapter) RequirePermissionNode(cmd any, node string) bool {
	v := reflect.ValueOf(cmd)
	if isNil(v) {
		return false
	}
	nodeVal := reflect.ValueOf(node)
	for _, name := range requireSetterNames {
		m, ok := method(v, name)
		if !ok || m.Type().NumIn() != 1 || m.Type().In(0).Kind() != reflect.String {
			continue
		}
		outs, err := safeCall(m, nodeVal.Convert(m.Type().In(0)))
		if err == nil && succeeded(outs) {
			return true
		}
	}
	for _, name := range requireFieldNames {
		f, ok := field(v, name)
		if ok && f.Kind() == reflect.String && trySet(f, nodeVal) {
			return true
		}
	}
	a.reportUnavailable(bindingKey{op: OpRequirePermission, recv: v.Type()})
	return false
}

// RequirePermissionLevel asks the host for a numeric permission level on
// cmd, when the host uses levels at all.
func (a *Adapter) RequirePermissionLevel(cmd any, level int) bool {
	v := reflect.ValueOf(cmd)
	if isNil(v) {
		return false
	}
	for _, name := range levelSetterNames {
		m, ok := method(v, name)
		if !ok || m.Type().NumIn() != 1 || !isIntKind(m.Type().In(0).Kind()) {
			continue
		}
		outs, err := safeCall(m, reflect.ValueOf(level).Convert(m.Type().In(0)))
		if err == nil && succeeded(outs) {
			return true
		}
	}
	return false
}

type permQuery func(subject reflect.Value, node string) Permission

// QueryPermission asks the host whether subject holds node. PermUnknown
// means the host exposes no usable query; the caller decides what that
// means via Permission.Resolve.
func (a *Adapter) QueryPermission(subject any, node string) Permission {
	v := reflect.ValueOf(subject)
	if isNil(v) {
		return PermUnknown
	}
	b := resolve(a, OpQueryPermission, v.Type(), func() (permQuery, bool) {
		for _, name := range permissionQueryNames {
			m, ok := method(v, name)
			if !ok {
				continue
			}
			t := m.Type()
			if t.NumIn() != 1 || t.In(0).Kind() != reflect.String || t.NumOut() < 1 || t.Out(0).Kind() != reflect.Bool {
				continue
			}
			name := name
			return func(s reflect.Value, node string) Permission {
				m, ok := method(s, name)
				if !ok {
					return PermUnknown
				}
				return boolPermission(safeCall(m, reflect.ValueOf(node).Convert(m.Type().In(0))))
			}, true
		}
		return nil, false
	})
	if !b.Available {
		return PermUnknown
	}
	return b.Fn(v, node)
}

type opQuery func(subject reflect.Value) Permission

// QueryOperator asks whether subject is a host operator or administrator.
// The subject is asked first; failing that the universe is asked with the
// subject's UUID.
func (a *Adapter) QueryOperator(subject any, id uuid.UUID) Permission {
	v := reflect.ValueOf(subject)
	if !isNil(v) {
		b := resolve(a, OpQueryOperator, v.Type(), func() (opQuery, bool) {
			for _, name := range operatorQueryNames {
				m, ok := method(v, name)
				if !ok {
					continue
				}
				t := m.Type()
				if t.NumIn() != 0 || t.NumOut() < 1 || t.Out(0).Kind() != reflect.Bool {
					continue
				}
				name := name
				return func(s reflect.Value) Permission {
					m, ok := method(s, name)
					if !ok {
						return PermUnknown
					}
					return boolPermission(safeCall(m))
				}, true
			}
			return nil, false
		})
		if b.Available {
			if p := b.Fn(v); p != PermUnknown {
				return p
			}
		}
	}
	if id == uuid.Nil {
		return PermUnknown
	}
	u := reflect.ValueOf(a.universe)
	b := resolve(a, OpQueryOperator, reflect.TypeOf(a.universe), func() (opQuery, bool) {
		for _, name := range operatorQueryNames {
			m, ok := method(u, name)
			if !ok {
				continue
			}
			t := m.Type()
			if t.NumIn() != 1 || t.In(0) != reflect.TypeOf(uuid.UUID{}) || t.NumOut() < 1 || t.Out(0).Kind() != reflect.Bool {
				continue
			}
			name := name
			return func(s reflect.Value) Permission {
				m, ok := method(u, name)
				if !ok {
					return PermUnknown
				}
				return boolPermission(safeCall(m, s))
			}, true
		}
		return nil, false
	})
	if !b.Available {
		return PermUnknown
	}
	return b.Fn(reflect.ValueOf(id))
}

func boolPermission(outs []reflect.Value, err error) Permission {
	if err != nil || len(outs) == 0 {
		return PermUnknown
	}
	if len(outs) > 1 {
		if _, ok := outcome(outs); !ok {
			return PermUnknown
		}
	}
	if outs[0].Kind() != reflect.Bool {
		return PermUnknown
	}
	if outs[0].Bool() {
		return PermAllowed
	}
	return PermDenied
}
