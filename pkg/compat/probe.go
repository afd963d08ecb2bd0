package compat

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// safeCall invokes fn and converts a host panic into an error.
func safeCall(fn reflect.Value, args ...reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compat: host call panicked: %v", r)
		}
	}()
	return fn.Call(args), nil
}

// safeCallSlice is safeCall for variadic functions whose last argument is
// already a slice.
func safeCallSlice(fn reflect.Value, args ...reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compat: host call panicked: %v", r)
		}
	}()
	return fn.CallSlice(args), nil
}

// outcome interprets the usual Go return conventions of a host call:
// (), (T), (T, bool), (T, error), (error) and (bool). ok is false when the
// host signalled failure.
func outcome(outs []reflect.Value) (first reflect.Value, ok bool) {
	if len(outs) == 0 {
		return reflect.Value{}, true
	}
	last := outs[len(outs)-1]
	if last.Type().Implements(errorType) {
		if !isNil(last) {
			return reflect.Value{}, false
		}
		if len(outs) == 1 {
			return reflect.Value{}, true
		}
		return outs[0], true
	}
	if len(outs) == 2 && last.Kind() == reflect.Bool {
		return outs[0], last.Bool()
	}
	return outs[0], true
}

// succeeded reports whether a call that returns nothing, an error or a bool
// went through.
func succeeded(outs []reflect.Value) bool {
	first, ok := outcome(outs)
	if !ok {
		return false
	}
	if len(outs) == 1 && first.IsValid() && first.Kind() == reflect.Bool {
		return first.Bool()
	}
	return true
}

// addressable returns a pointer to a copy of v when v is a plain value so
// that pointer-receiver methods become visible.
func addressable(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v
	}
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

// deref follows interfaces and pointers down to a concrete value.
func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// method looks up an exported method by name on v or on a pointer to v.
func method(v reflect.Value, name string) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	m := addressable(v).MethodByName(name)
	if !m.IsValid() {
		m = v.MethodByName(name)
	}
	return m, m.IsValid()
}

// field returns the exported struct field name on v, following pointers.
func field(v reflect.Value, name string) (reflect.Value, bool) {
	s := deref(v)
	if !s.IsValid() || s.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	sf, ok := s.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return reflect.Value{}, false
	}
	f, err := fieldByIndex(s, sf.Index)
	if err != nil {
		return reflect.Value{}, false
	}
	return f, true
}

// fieldByIndex is FieldByIndexErr without the nil embedded pointer panic.
func fieldByIndex(s reflect.Value, index []int) (f reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compat: field access: %v", r)
		}
	}()
	return s.FieldByIndexErr(index)
}

// hasMember reports whether v exposes name as a zero-argument method with
// a result, or as an exported field.
func hasMember(v reflect.Value, name string) bool {
	if m, ok := method(v, name); ok {
		return m.Type().NumIn() == 0 && m.Type().NumOut() >= 1
	}
	_, ok := field(v, name)
	return ok
}

// member reads name from v, preferring a zero-argument method over a field.
func member(v reflect.Value, name string) (reflect.Value, bool) {
	if m, ok := method(v, name); ok && m.Type().NumIn() == 0 && m.Type().NumOut() >= 1 {
		outs, err := safeCall(m)
		if err != nil {
			return reflect.Value{}, false
		}
		first, ok := outcome(outs)
		if !ok || isNil(first) {
			return reflect.Value{}, false
		}
		return first, true
	}
	if f, ok := field(v, name); ok && !isNil(f) {
		return f, true
	}
	return reflect.Value{}, false
}

// firstMember returns the first name in names that v exposes.
func firstMember(v reflect.Value, names ...string) (string, bool) {
	for _, n := range names {
		if hasMember(v, n) {
			return n, true
		}
	}
	return "", false
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// toFloat converts any numeric value to float64.
func toFloat(v reflect.Value) (float64, bool) {
	v = deref(v)
	if !v.IsValid() {
		return 0, false
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

// trySet assigns val to a settable field, converting when the types allow.
func trySet(f reflect.Value, val reflect.Value) bool {
	if !f.CanSet() {
		return false
	}
	switch {
	case val.Type().AssignableTo(f.Type()):
		f.Set(val)
	case isIntKind(val.Kind()) && isIntKind(f.Kind()),
		val.Kind() == reflect.String && f.Kind() == reflect.String,
		val.Kind() == reflect.Bool && f.Kind() == reflect.Bool:
		f.Set(val.Convert(f.Type()))
	default:
		return false
	}
	return true
}
