package compat

import (
	"reflect"

	"go.uber.org/zap"
)

// registerFunc registers handler for the named event kind.
type registerFunc func(kind string, handler func(ev any)) bool

// listenerMethodNames are tried on the event registry in order.
var listenerMethodNames = []string{"Register", "RegisterListener", "Subscribe"}

// registerShape describes one known parameter layout of a register method.
type registerShape struct {
	name  string
	arity int
	match func(t reflect.Type) bool
	args  func(t reflect.Type, kind string, handler reflect.Value) []reflect.Value
}

// registerShapes lists the layouts in probing order:
// (kind, handler), (priority, kind, handler), (kind, key, handler) and
// (priority, kind, key, handler).
var registerShapes = []registerShape{
	{
		name:  "kind,handler",
		arity: 2,
		match: func(t reflect.Type) bool {
			return isKindParam(t.In(0)) && isHandlerParam(t.In(1))
		},
		args: func(t reflect.Type, kind string, h reflect.Value) []reflect.Value {
			return []reflect.Value{kindValue(t.In(0), kind), h}
		},
	},
	{
		name:  "priority,kind,handler",
		arity: 3,
		match: func(t reflect.Type) bool {
			return isIntKind(t.In(0).Kind()) && isKindParam(t.In(1)) && isHandlerParam(t.In(2))
		},
		args: func(t reflect.Type, kind string, h reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.Zero(t.In(0)), kindValue(t.In(1), kind), h}
		},
	},
	{
		name:  "kind,key,handler",
		arity: 3,
		match: func(t reflect.Type) bool {
			return isKindParam(t.In(0)) && !isHandlerParam(t.In(1)) && isHandlerParam(t.In(2))
		},
		args: func(t reflect.Type, kind string, h reflect.Value) []reflect.Value {
			return []reflect.Value{kindValue(t.In(0), kind), reflect.Zero(t.In(1)), h}
		},
	},
	{
		name:  "priority,kind,key,handler",
		arity: 4,
		match: func(t reflect.Type) bool {
			return isIntKind(t.In(0).Kind()) && isKindParam(t.In(1)) &&
				!isHandlerParam(t.In(2)) && isHandlerParam(t.In(3))
		},
		args: func(t reflect.Type, kind string, h reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.Zero(t.In(0)), kindValue(t.In(1), kind), reflect.Zero(t.In(2)), h}
		},
	},
}

func isKindParam(t reflect.Type) bool {
	return t.Kind() == reflect.String
}

func kindValue(t reflect.Type, kind string) reflect.Value {
	return reflect.ValueOf(kind).Convert(t)
}

// isHandlerParam accepts any single-argument function with at most one
// result, e.g. func(any), func(*ChatEvent) or func(Event) error.
func isHandlerParam(t reflect.Type) bool {
	return t.Kind() == reflect.Func && t.NumIn() == 1 && t.NumOut() <= 1 && !t.IsVariadic()
}

// makeHandler adapts handler to the host's expected function type.
func makeHandler(t reflect.Type, handler func(ev any)) reflect.Value {
	return reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
		var ev any
		if a := args[0]; a.IsValid() && !isNil(a) {
			ev = a.Interface()
		}
		handler(ev)
		outs := make([]reflect.Value, t.NumOut())
		for i := range outs {
			outs[i] = reflect.Zero(t.Out(i))
		}
		return outs
	})
}

// RegisterListener subscribes handler to the named event kind. The first
// register shape whose signature fits the host's registry is bound and used
// for every later registration. It returns false when the host has no
// usable registry or rejects the kind.
func (a *Adapter) RegisterListener(kind string, handler func(ev any)) bool {
	b := resolve(a, OpRegisterListener, reflect.TypeOf(a.registry), func() (registerFunc, bool) {
		return probeRegister(reflect.ValueOf(a.registry))
	})
	if !b.Available {
		return false
	}
	ok := b.Fn(kind, handler)
	if !ok {
		a.log.Debug("event kind rejected by host", zap.String("kind", kind))
	}
	return ok
}

func probeRegister(reg reflect.Value) (registerFunc, bool) {
	for _, shape := range registerShapes {
		for _, name := range listenerMethodNames {
			m, ok := method(reg, name)
			if !ok {
				continue
			}
			t := m.Type()
			if t.IsVariadic() || t.NumIn() != shape.arity || !shape.match(t) {
				continue
			}
			shape := shape
			handlerType := t.In(shape.arity - 1)
			return func(kind string, handler func(ev any)) bool {
				args := shape.args(t, kind, makeHandler(handlerType, handler))
				outs, err := safeCall(m, args...)
				if err != nil {
					return false
				}
				return succeeded(outs)
			}, true
		}
	}
	return nil, false
}
