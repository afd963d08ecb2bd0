// Package compat resolves the operations the chat module needs against a
// host whose API shape is only known at runtime.
//
// Each operation has a ranked candidate table (method names, parameter
// shapes, field names). The first candidate whose signature fits is bound,
// cached per receiver type and reused for the life of the process. When
// nothing fits, the binding is the unavailable sentinel and callers get a
// documented fallback value. No exported function returns a host error or
// lets a host panic escape.
package compat

import (
	"errors"
	"reflect"
	"sync"

	"github.com/crystal-mush/localchat/pkg/host"
	"go.uber.org/zap"
)

// Op names an abstract host operation.
type Op string

const (
	OpRegisterListener  Op = "register-event-listener"
	OpRelaxPermission   Op = "relax-permission-requirement"
	OpRequirePermission Op = "require-permission-node"
	OpQueryPermission   Op = "query-permission"
	OpQueryOperator     Op = "query-operator"
	OpEnumerateUsers    Op = "enumerate-connected-users"
	OpResolveByName     Op = "resolve-user-by-name"
	OpResolveByID       Op = "resolve-user-by-id"
	OpReadPosition      Op = "read-spatial-position"
	OpReadWorld         Op = "read-world-identity"
	OpTrailingArgs      Op = "enable-unbounded-trailing-arguments"
	OpGreedyArg         Op = "enable-greedy-text-argument"
	OpParseMarkup       Op = "parse-rich-markup"
	OpRawInput          Op = "read-raw-input"
	OpSenderName        Op = "read-sender-name"
	OpEventPlayer       Op = "read-event-player"
	OpAddAlias          Op = "register-command-alias"
)

// ErrUnavailable marks a capability the host does not expose.
var ErrUnavailable = errors.New("compat: capability unavailable")

// Binding is a resolved capability. Fn is the zero value when Available is
// false.
type Binding[F any] struct {
	Op        Op
	Fn        F
	Available bool
}

type bindingKey struct {
	op   Op
	recv reflect.Type
}

// Options configures an Adapter.
type Options struct {
	Logger *zap.Logger
	// OnResolve is called once per (operation, receiver type) pair when a
	// binding is first stored.
	OnResolve func(op Op, available bool)
}

// Adapter owns the resolved bindings for one host.
type Adapter struct {
	platform host.Platform
	registry any
	universe any
	log      *zap.Logger
	onRes    func(Op, bool)

	bindings sync.Map // bindingKey -> Binding[F]
	reported sync.Map // bindingKey -> struct{}
}

// New builds an adapter for platform. Nothing is probed until first use.
func New(platform host.Platform, opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		platform: platform,
		log:      logger.Named("compat"),
		onRes:    opts.OnResolve,
	}
	if platform != nil {
		a.registry = safeAny(platform.EventRegistry)
		a.universe = safeAny(platform.Universe)
	}
	return a
}

// resolve returns the cached binding for (op, recv) or runs probe once and
// stores its result. Concurrent first callers may both probe; whichever
// stores first wins and every caller sees that binding.
func resolve[F any](a *Adapter, op Op, recv reflect.Type, probe func() (F, bool)) Binding[F] {
	key := bindingKey{op: op, recv: recv}
	if v, ok := a.bindings.Load(key); ok {
		return v.(Binding[F])
	}

	var b Binding[F]
	b.Op = op
	if recv != nil {
		fn, ok := probe()
		b.Fn, b.Available = fn, ok
	}

	actual, loaded := a.bindings.LoadOrStore(key, b)
	b = actual.(Binding[F])
	if !loaded {
		if a.onRes != nil {
			a.onRes(op, b.Available)
		}
		if b.Available {
			a.log.Debug("capability bound", zap.String("op", string(op)), zap.Stringer("type", typeName{recv}))
		}
	}
	if !b.Available {
		a.reportUnavailable(key)
	}
	return b
}

// reportUnavailable logs a missing capability the first time it is seen.
func (a *Adapter) reportUnavailable(key bindingKey) {
	if _, seen := a.reported.LoadOrStore(key, struct{}{}); seen {
		return
	}
	a.log.Warn("capability unavailable, using fallback",
		zap.String("op", string(key.op)),
		zap.Stringer("type", typeName{key.recv}))
}

// Resolved reports whether op has been bound for a value of recv's type.
// It never triggers a probe.
func (a *Adapter) Resolved(op Op, recv any) (available, known bool) {
	v, ok := a.bindings.Load(bindingKey{op: op, recv: reflect.TypeOf(recv)})
	if !ok {
		return false, false
	}
	return reflect.ValueOf(v).FieldByName("Available").Bool(), true
}

type typeName struct{ t reflect.Type }

func (n typeName) String() string {
	if n.t == nil {
		return "<nil>"
	}
	return n.t.String()
}

func safeAny(f func() any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()
	return f()
}
