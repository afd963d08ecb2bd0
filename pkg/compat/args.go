package compat

import (
	"fmt"
	"reflect"
	"strings"
)

type keyword struct {
	word   string
	weight int
}

// keyword weights for argument type selection.
var greedyKeywords = []keyword{
	{"greedy", 50},
	{"remain", 40},
	{"rest", 40},
	{"remainder", 40},
	{"trailing", 35},
	{"message", 30},
	{"sentence", 30},
	{"chat", 20},
	{"raw", 10},
	{"text", 5},
}

var trailingKeywords = []keyword{
	{"extra", 40},
	{"trailing", 40},
	{"unknown", 30},
	{"additional", 30},
	{"more", 10},
	{"args", 10},
	{"arguments", 10},
}

func keywordScore(s string, words []keyword) int {
	s = strings.ToLower(s)
	score := 0
	for _, k := range words {
		if strings.Contains(s, k.word) {
			score += k.weight
		}
	}
	return score
}

// reportsGreedy reports whether v answers IsGreedy() or Greedy() with true.
func reportsGreedy(v reflect.Value) bool {
	for _, name := range []string{"IsGreedy", "Greedy"} {
		m, ok := method(v, name)
		if !ok || m.Type().NumIn() != 0 || m.Type().NumOut() < 1 || m.Type().Out(0).Kind() != reflect.Bool {
			continue
		}
		outs, err := safeCall(m)
		if err == nil && outs[0].Bool() {
			return true
		}
	}
	return false
}

// GreedyTextType picks the argument type on the host's ArgTypes value best
// suited to capture the rest of a line. Candidates are the exported fields
// assignable to the type of the String field; each is scored by keywords in
// its field name, type name and printed value, plus 100 if it reports
// itself greedy. The String type itself is the fallback.
func (a *Adapter) GreedyTextType(argTypes any) (any, bool) {
	v := reflect.ValueOf(argTypes)
	if isNil(v) {
		return nil, false
	}
	b := resolve(a, OpGreedyArg, v.Type(), func() (string, bool) {
		return probeGreedyField(v)
	})
	if !b.Available {
		return nil, false
	}
	f, ok := field(v, b.Fn)
	if !ok || !f.CanInterface() {
		return nil, false
	}
	return f.Interface(), true
}

func probeGreedyField(v reflect.Value) (string, bool) {
	s := deref(v)
	if !s.IsValid() || s.Kind() != reflect.Struct {
		return "", false
	}
	base, hasBase := s.Type().FieldByName("String")
	bestScore, best := -1, ""
	for i := 0; i < s.NumField(); i++ {
		sf := s.Type().Field(i)
		if !sf.IsExported() {
			continue
		}
		if hasBase && !sf.Type.AssignableTo(base.Type) {
			continue
		}
		fv := s.Field(i)
		score := keywordScore(sf.Name, greedyKeywords) + keywordScore(fv.Type().String(), greedyKeywords)
		if !isNil(fv) && fv.CanInterface() {
			score += keywordScore(fmt.Sprint(fv.Interface()), greedyKeywords)
		}
		if reportsGreedy(fv) {
			score += 100
		}
		if score > bestScore {
			bestScore, best = score, sf.Name
		}
	}
	if best == "" {
		return "", false
	}
	if bestScore == 0 && hasBase {
		return base.Name, true
	}
	return best, true
}

// EnableGreedy switches an argument object, or one of its direct fields, to
// greedy parsing through SetGreedy(true) or an exported Greedy bool field.
func (a *Adapter) EnableGreedy(arg any) bool {
	v := reflect.ValueOf(arg)
	if isNil(v) {
		return false
	}
	if setGreedy(v) {
		return true
	}
	s := deref(v)
	if s.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < s.NumField(); i++ {
		if !s.Type().Field(i).IsExported() {
			continue
		}
		if f := s.Field(i); !isNil(f) && setGreedy(f) {
			return true
		}
	}
	return false
}

func setGreedy(v reflect.Value) bool {
	for _, name := range []string{"SetGreedy", "EnableGreedy"} {
		m, ok := method(v, name)
		if !ok {
			continue
		}
		t := m.Type()
		switch {
		case t.NumIn() == 1 && t.In(0).Kind() == reflect.Bool:
			if outs, err := safeCall(m, reflect.ValueOf(true).Convert(t.In(0))); err == nil && succeeded(outs) {
				return true
			}
		case t.NumIn() == 0:
			if outs, err := safeCall(m); err == nil && succeeded(outs) {
				return true
			}
		}
	}
	if f, ok := field(v, "Greedy"); ok && f.Kind() == reflect.Bool {
		return trySet(f, reflect.ValueOf(true))
	}
	return false
}

// trailingCandidate is a member of a command object that controls whether
// extra arguments are accepted.
type trailingCandidate struct {
	name   string
	method bool
	value  reflect.Value
	score  int
}

func trailingValue(name string, t reflect.Type) (reflect.Value, int, bool) {
	lower := strings.ToLower(name)
	switch {
	case t.Kind() == reflect.Bool && (strings.Contains(lower, "allow") || strings.Contains(lower, "ignore") || strings.Contains(lower, "accept")):
		return reflect.ValueOf(true).Convert(t), 20, true
	case t.Kind() == reflect.Bool && (strings.Contains(lower, "strict") || strings.Contains(lower, "exact") || strings.Contains(lower, "enforce")):
		return reflect.ValueOf(false).Convert(t), 10, true
	case isIntKind(t.Kind()) && strings.Contains(lower, "max"):
		return reflect.ValueOf(9999).Convert(t), 5, true
	}
	return reflect.Value{}, 0, false
}

func probeTrailing(v reflect.Value) (trailingCandidate, bool) {
	var best trailingCandidate
	best.score = -1
	consider := func(c trailingCandidate) {
		if c.score > best.score {
			best = c
		}
	}
	pv := addressable(v)
	for i := 0; i < pv.Type().NumMethod(); i++ {
		name := pv.Type().Method(i).Name
		m, ok := method(v, name)
		if !ok || m.Type().NumIn() != 1 || m.Type().IsVariadic() {
			continue
		}
		val, base, ok := trailingValue(name, m.Type().In(0))
		if !ok {
			continue
		}
		kw := keywordScore(name, trailingKeywords)
		if kw == 0 {
			continue
		}
		consider(trailingCandidate{name: name, method: true, value: val, score: base + kw})
	}
	if s := deref(v); s.IsValid() && s.Kind() == reflect.Struct {
		for i := 0; i < s.NumField(); i++ {
			sf := s.Type().Field(i)
			if !sf.IsExported() {
				continue
			}
			val, base, ok := trailingValue(sf.Name, sf.Type)
			if !ok {
				continue
			}
			kw := keywordScore(sf.Name, trailingKeywords)
			if kw == 0 {
				continue
			}
			consider(trailingCandidate{name: sf.Name, value: val, score: base + kw})
		}
	}
	return best, best.score >= 0
}

// EnableTrailingArgs lets cmd accept more input than its declared arguments.
// The best scoring setter or field is bound per command type.
func (a *Adapter) EnableTrailingArgs(cmd any) bool {
	v := reflect.ValueOf(cmd)
	if isNil(v) {
		return false
	}
	b := resolve(a, OpTrailingArgs, v.Type(), func() (trailingCandidate, bool) {
		return probeTrailing(v)
	})
	if !b.Available {
		return false
	}
	c := b.Fn
	if c.method {
		m, ok := method(v, c.name)
		if !ok {
			return false
		}
		outs, err := safeCall(m, c.value)
		return err == nil && succeeded(outs)
	}
	f, ok := field(v, c.name)
	return ok && trySet(f, c.value)
}
