package compat

import (
	"fmt"
	"reflect"
)

var (
	transformNames = []string{"Transform", "GetTransform"}
	positionNames  = []string{"Position", "GetPosition", "Translation", "GetTranslation", "Location", "GetLocation"}
	axisNames      = [3][]string{{"X", "GetX"}, {"Y", "GetY"}, {"Z", "GetZ"}}
	worldNames     = []string{"WorldUUID", "GetWorldUUID", "WorldID", "GetWorldID", "World", "GetWorld"}
)

// Vec3 is a position in world space.
type Vec3 struct {
	X, Y, Z float64
}

// DistSq returns the squared distance between two points.
func (v Vec3) DistSq(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

// positionPath is the accessor chain found for one handle type. Empty
// strings are skipped.
type positionPath struct {
	transform string
	position  string
	axes      [3]string
}

func (p positionPath) read(v reflect.Value) Vec3 {
	cur := v
	for _, step := range []string{p.transform, p.position} {
		if step == "" {
			continue
		}
		next, ok := member(cur, step)
		if !ok {
			return Vec3{}
		}
		cur = next
	}
	var xyz [3]float64
	for i, name := range p.axes {
		if name == "" {
			continue
		}
		if val, ok := member(cur, name); ok {
			xyz[i], _ = toFloat(val)
		}
	}
	return Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}
}

// probePosition walks the optional transform and position accessors and
// settles on the first level that exposes at least one axis.
func probePosition(v reflect.Value) (positionPath, bool) {
	var best positionPath
	found := false
	try := func(cur reflect.Value, p positionPath) bool {
		n := 0
		for i, names := range axisNames {
			if name, ok := firstMember(cur, names...); ok {
				p.axes[i] = name
				n++
			}
		}
		if n == 0 {
			return false
		}
		best, found = p, true
		return true
	}

	type level struct {
		val  reflect.Value
		path positionPath
	}
	levels := []level{{val: v}}
	if name, ok := firstMember(v, transformNames...); ok {
		if tv, ok := member(v, name); ok {
			levels = append([]level{{val: tv, path: positionPath{transform: name}}}, levels...)
		}
	}
	for _, lvl := range levels {
		if name, ok := firstMember(lvl.val, positionNames...); ok {
			if pv, ok := member(lvl.val, name); ok {
				p := lvl.path
				p.position = name
				if try(pv, p) {
					return best, found
				}
			}
		}
		if try(lvl.val, lvl.path) {
			return best, found
		}
	}
	return best, found
}

// Position reads a player's coordinates. Unreadable axes are 0 and a handle
// with no readable position at all is the origin.
func (a *Adapter) Position(handle any) Vec3 {
	v := reflect.ValueOf(handle)
	if isNil(v) {
		return Vec3{}
	}
	b := resolve(a, OpReadPosition, v.Type(), func() (positionPath, bool) {
		return probePosition(v)
	})
	if !b.Available {
		return Vec3{}
	}
	return b.Fn.read(v)
}

// World returns an opaque comparable key for the handle's world, or nil if
// the host exposes none. Keys whose contents cannot be compared are
// rendered with fmt so that == never panics on them.
func (a *Adapter) World(handle any) any {
	v := reflect.ValueOf(handle)
	if isNil(v) {
		return nil
	}
	b := resolve(a, OpReadWorld, v.Type(), func() (string, bool) {
		return firstMember(v, worldNames...)
	})
	if !b.Available {
		return nil
	}
	val, ok := member(v, b.Fn)
	if !ok || !val.CanInterface() {
		return nil
	}
	key := val.Interface()
	if key == nil {
		return nil
	}
	// Value.Comparable also looks inside interface fields, which may hold
	// a slice or map even when the static type is comparable.
	if !reflect.ValueOf(key).Comparable() {
		return fmt.Sprint(key)
	}
	return key
}

// SameWorld reports whether two handles are in the same world. Two handles
// whose world cannot be read compare equal.
func (a *Adapter) SameWorld(p, q any) bool {
	return a.World(p) == a.World(q)
}
