package membrane

import (
	"github.com/dop251/goja"
)

// toSandbox translates a host value for exposure inside the sandbox realm.
// The distortion callback runs first and may substitute the value.
func (m *Membrane) toSandbox(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	if m.distortion != nil {
		if alt := m.distortion(v); alt != nil {
			v = alt
		}
	}
	if goja.IsUndefined(v) {
		return goja.Undefined()
	}
	if goja.IsNull(v) {
		return goja.Null()
	}

	obj := asObject(v)
	if obj == nil {
		// Primitives cross by copy.
		return m.sandbox.vm.ToValue(v.Export())
	}
	if out, ok := m.outbound[obj]; ok {
		return out
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return m.wrapFunction(obj, fn, m.sandbox, m.toHost, m.toSandbox, m.outbound, m.inbound)
	}

	proxy := m.sandbox.vm.NewDynamicObject(&bridgedObject{
		remote:  obj,
		outward: m.toSandbox,
		inward:  m.toHost,
	})
	m.outbound[obj] = proxy
	m.inbound[proxy] = obj
	return proxy
}

// toHost translates a sandbox value for consumption by the host realm:
// proxies and linked objects unwrap to their host originals, sandbox
// functions cross as wrapped callables, everything else exports by value.
func (m *Membrane) toHost(v goja.Value) goja.Value {
	if v == nil || goja.IsUndefined(v) {
		return goja.Undefined()
	}
	if goja.IsNull(v) {
		return goja.Null()
	}

	obj := asObject(v)
	if obj == nil {
		return m.host.vm.ToValue(v.Export())
	}
	if in, ok := m.inbound[obj]; ok {
		return in
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return m.wrapFunction(obj, fn, m.host, m.toSandbox, m.toHost, m.inbound, m.outbound)
	}
	return m.host.vm.ToValue(v.Export())
}

// wrapFunction materializes a function from one realm as a native function
// in the other. Arguments cross inward, results cross outward, and the
// wrapper is cached so the same function always materializes identically.
func (m *Membrane) wrapFunction(
	orig *goja.Object,
	fn goja.Callable,
	target *Connector,
	inward, outward func(goja.Value) goja.Value,
	forward, backward map[*goja.Object]goja.Value,
) goja.Value {
	wrapper := target.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		args := make([]goja.Value, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = inward(a)
		}
		// A bare call binds this to the calling realm's global; crossing
		// that would drag the whole global across the boundary.
		this := goja.Value(goja.Undefined())
		if call.This != nil && call.This != goja.Value(target.root) {
			this = inward(call.This)
		}
		res, err := fn(this, args...)
		if err != nil {
			panic(target.vm.NewGoError(err))
		}
		return outward(res)
	})
	wo := wrapper.ToObject(target.vm)
	forward[orig] = wo
	backward[wo] = orig
	return wo
}

// bridgedObject is the per-access interception proxy: a dynamic object in
// one realm whose traps delegate to the original object in the other.
type bridgedObject struct {
	remote  *goja.Object
	outward func(goja.Value) goja.Value
	inward  func(goja.Value) goja.Value
}

func (b *bridgedObject) Get(key string) goja.Value {
	return b.outward(b.remote.Get(key))
}

func (b *bridgedObject) Set(key string, val goja.Value) bool {
	return b.remote.Set(key, b.inward(val)) == nil
}

func (b *bridgedObject) Has(key string) bool {
	return b.remote.Get(key) != nil
}

func (b *bridgedObject) Delete(key string) bool {
	return b.remote.Delete(key) == nil
}

func (b *bridgedObject) Keys() []string {
	return b.remote.Keys()
}
