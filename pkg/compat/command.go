package compat

import (
	"reflect"

	"github.com/crystal-mush/localchat/pkg/host"
)

var (
	aliasMethodNames  = []string{"AddAlias", "AddAliases", "SetAlias", "SetAliases", "Alias", "Aliases"}
	markupMethodNames = []string{"ParseMarkup", "ParseRich", "ParseTiny", "Parse"}
	rawInputNames     = []string{"Input", "InputString", "RawInput", "Raw", "CommandLine"}

	messageType     = reflect.TypeOf(host.Message{})
	stringSliceType = reflect.TypeOf([]string(nil))
)

// AddAliases registers aliases on a host command object. Setters taking a
// single string are called once per alias; slice and variadic setters get
// the whole list. It reports whether the host accepted them.
func (a *Adapter) AddAliases(cmd any, aliases ...string) bool {
	v := reflect.ValueOf(cmd)
	if isNil(v) || len(aliases) == 0 {
		return false
	}
	for _, name := range aliasMethodNames {
		m, ok := method(v, name)
		if !ok || m.Type().NumIn() != 1 {
			continue
		}
		t := m.Type()
		in := t.In(0)
		switch {
		case t.IsVariadic() && in.Elem().Kind() == reflect.String:
			outs, err := safeCallSlice(m, reflect.ValueOf(aliases).Convert(in))
			if err == nil && succeeded(outs) {
				return true
			}
		case in.Kind() == reflect.Slice && in.Elem().Kind() == reflect.String && stringSliceType.ConvertibleTo(in):
			outs, err := safeCall(m, reflect.ValueOf(aliases).Convert(in))
			if err == nil && succeeded(outs) {
				return true
			}
		case in.Kind() == reflect.String:
			all := true
			for _, alias := range aliases {
				outs, err := safeCall(m, reflect.ValueOf(alias).Convert(in))
				if err != nil || !succeeded(outs) {
					all = false
				}
			}
			if all {
				return true
			}
		}
	}
	a.reportUnavailable(bindingKey{op: OpAddAlias, recv: v.Type()})
	return false
}

type markupFunc func(text string) (host.Message, bool)

// ParseMarkup renders tagged text such as "<color:green>hi</color>" with
// the host's parser. ok is false when the host has none or rejects the
// input; callers then send a plain fallback.
func (a *Adapter) ParseMarkup(text string) (host.Message, bool) {
	p := reflect.ValueOf(a.platform)
	b := resolve(a, OpParseMarkup, reflect.TypeOf(a.platform), func() (markupFunc, bool) {
		for _, name := range markupMethodNames {
			m, ok := method(p, name)
			if !ok {
				continue
			}
			t := m.Type()
			if t.NumIn() != 1 || t.In(0).Kind() != reflect.String || t.NumOut() < 1 || t.Out(0) != messageType {
				continue
			}
			return func(text string) (host.Message, bool) {
				outs, err := safeCall(m, reflect.ValueOf(text).Convert(t.In(0)))
				if err != nil {
					return host.Message{}, false
				}
				first, ok := outcome(outs)
				if !ok {
					return host.Message{}, false
				}
				return first.Interface().(host.Message), true
			}, true
		}
		return nil, false
	})
	if !b.Available {
		return host.Message{}, false
	}
	return b.Fn(text)
}

// RawInput returns the full command line a command context was built from,
// when the host keeps it.
func (a *Adapter) RawInput(ctx any) (string, bool) {
	v := reflect.ValueOf(ctx)
	if isNil(v) {
		return "", false
	}
	b := resolve(a, OpRawInput, v.Type(), func() (string, bool) {
		for _, name := range rawInputNames {
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
	if !b.Available {
		return "", false
	}
	val, ok := member(v, b.Fn)
	if !ok || val.Kind() != reflect.String {
		return "", false
	}
	return val.String(), true
}
