package membrane

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// DistortionFunc is invoked for every host value about to be exposed to the
// sandbox. It may return a substitute value; returning nil keeps the
// original.
type DistortionFunc func(goja.Value) goja.Value

// Instrumentation receives observability callbacks. No method has any effect
// on bridging semantics.
type Instrumentation interface {
	KeyBridged(name string, lazy bool)
	LazyMaterialized(name string)
}

type nopInstrumentation struct{}

func (nopInstrumentation) KeyBridged(string, bool) {}
func (nopInstrumentation) LazyMaterialized(string) {}

// Options configures a membrane.
type Options struct {
	Distortion      DistortionFunc
	Instrumentation Instrumentation
	Logger          *zap.Logger
}

// Membrane is the live bridge between a host connector and a sandbox
// connector. Once returned from configuration its lifecycle belongs to the
// caller.
type Membrane struct {
	host    *Connector
	sandbox *Connector

	distortion DistortionFunc
	instr      Instrumentation
	log        *zap.Logger

	// Identity maps. outbound translates host objects to their sandbox
	// materialization, inbound the reverse. Linked pairs are seeded into
	// both so they substitute for each other without wrapping.
	outbound map[*goja.Object]goja.Value
	inbound  map[*goja.Object]goja.Value
}

// New builds a membrane from a host/sandbox connector pair.
func New(host, sandbox *Connector, opts *Options) (*Membrane, error) {
	if host == nil || sandbox == nil {
		return nil, errors.New("membrane: both connectors are required")
	}
	if opts == nil {
		opts = &Options{}
	}

	m := &Membrane{
		host:       host,
		sandbox:    sandbox,
		distortion: opts.Distortion,
		instr:      opts.Instrumentation,
		log:        opts.Logger,
		outbound:   make(map[*goja.Object]goja.Value),
		inbound:    make(map[*goja.Object]goja.Value),
	}
	if m.instr == nil {
		m.instr = nopInstrumentation{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m, nil
}

// HostConnector returns the shared host-side connector.
func (m *Membrane) HostConnector() *Connector {
	return m.host
}

// SandboxConnector returns the sandbox-side connector.
func (m *Membrane) SandboxConnector() *Connector {
	return m.sandbox
}

// SandboxRoot returns the sandbox realm's root object.
func (m *Membrane) SandboxRoot() *goja.Object {
	return m.sandbox.root
}

// sharedIntrinsicNames are the built-ins whose identities are equated across
// the boundary so that values of these kinds cross without wrapping.
var sharedIntrinsicNames = []string{
	"Object", "Function", "Array", "String", "Number", "Boolean", "Symbol",
	"Math", "JSON", "Date", "RegExp", "Promise", "Proxy", "Reflect",
	"Error", "TypeError", "RangeError", "SyntaxError", "ReferenceError",
	"EvalError", "URIError",
	"Map", "Set", "WeakMap", "WeakSet",
	"ArrayBuffer", "DataView",
}

// LinkIntrinsics equates each shared intrinsic (and its prototype) on the
// host side with the sandbox realm's own copy. Intrinsics missing on either
// side are skipped.
func (m *Membrane) LinkIntrinsics() {
	for _, name := range sharedIntrinsicNames {
		h := asObject(m.host.root.Get(name))
		s := asObject(m.sandbox.root.Get(name))
		if h == nil || s == nil {
			continue
		}
		m.registerLink(h, s)
		hp := asObject(h.Get("prototype"))
		sp := asObject(s.Get("prototype"))
		if hp != nil && sp != nil {
			m.registerLink(hp, sp)
		}
	}
}

// Link equates the objects found at the same path on both realm roots. A
// "__proto__" path element traverses the prototype pointer; anything else is
// a property get. An empty path links the roots themselves.
func (m *Membrane) Link(path ...string) error {
	h := m.host.root
	s := m.sandbox.root
	for _, seg := range path {
		var hn, sn *goja.Object
		if seg == "__proto__" {
			hn = h.Prototype()
			sn = s.Prototype()
		} else {
			hn = asObject(h.Get(seg))
			sn = asObject(s.Get(seg))
		}
		if hn == nil {
			return fmt.Errorf("membrane: link %v: %q missing on host side", path, seg)
		}
		if sn == nil {
			return fmt.Errorf("membrane: link %v: %q missing on sandbox side", path, seg)
		}
		h, s = hn, sn
	}
	m.registerLink(h, s)
	return nil
}

// RemapPrototype points a sandbox object's prototype at the sandbox-side
// materialization of a host prototype, preserving instanceof-style checks
// across the boundary for that object.
func (m *Membrane) RemapPrototype(target *goja.Object, hostProto goja.Value) error {
	if target == nil {
		return errors.New("membrane: remap prototype: nil target")
	}
	p := asObject(m.toSandbox(hostProto))
	if p == nil {
		return errors.New("membrane: remap prototype: host prototype is not an object")
	}
	return target.SetPrototype(p)
}

// RemapProperties eagerly installs descriptors on a sandbox object. Values
// cross the membrane immediately.
func (m *Membrane) RemapProperties(target *goja.Object, props DescriptorMap) error {
	if target == nil {
		return errors.New("membrane: remap properties: nil target")
	}
	for name, d := range props {
		if err := target.DefineDataProperty(name, m.importValue(d.Value),
			flag(d.Writable), flag(d.Configurable), flag(d.Enumerable)); err != nil {
			return fmt.Errorf("membrane: remap %q: %w", name, err)
		}
		m.instr.KeyBridged(name, false)
	}
	return nil
}

// LazyRemapProperties installs bridging accessors for names on a sandbox
// object, deferring the cross-realm link for each until first read. Names in
// exclude are skipped. The source is the host object the names resolve
// against.
func (m *Membrane) LazyRemapProperties(target, source *goja.Object, names, exclude []string) error {
	if target == nil || source == nil {
		return errors.New("membrane: lazy remap: nil target or source")
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	for _, name := range names {
		if _, ok := skip[name]; ok {
			continue
		}
		if err := m.defineLazyBridge(target, source, name); err != nil {
			return fmt.Errorf("membrane: lazy remap %q: %w", name, err)
		}
		m.instr.KeyBridged(name, true)
	}
	return nil
}

// defineLazyBridge installs a self-replacing accessor: the first read pulls
// the host value through the membrane, memoizes it, and swaps the accessor
// for a data property. Re-entrant reads during materialization observe
// undefined rather than recursing.
func (m *Membrane) defineLazyBridge(target, source *goja.Object, name string) error {
	var (
		resolved  goja.Value
		done      bool
		resolving bool
	)
	vm := m.sandbox.vm

	getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		if done {
			return resolved
		}
		if resolving {
			return goja.Undefined()
		}
		resolving = true
		v := m.toSandbox(source.Get(name))
		resolved = v
		done = true
		resolving = false
		if err := target.DefineDataProperty(name, v,
			goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			m.log.Debug("lazy bridge: could not replace accessor",
				zap.String("name", name), zap.Error(err))
		}
		m.instr.LazyMaterialized(name)
		return v
	})

	setter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0)
		resolved = v
		done = true
		if err := target.DefineDataProperty(name, v,
			goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			m.log.Debug("lazy bridge: could not replace accessor",
				zap.String("name", name), zap.Error(err))
		}
		return goja.Undefined()
	})

	return target.DefineAccessorProperty(name, getter, setter,
		goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// registerLink seeds both identity maps with a linked pair.
func (m *Membrane) registerLink(host, sandbox *goja.Object) {
	m.outbound[host] = sandbox
	m.inbound[sandbox] = host
}

// importValue brings an endowment value into the sandbox realm. Host realm
// values are translated through the membrane; plain Go values convert
// directly.
func (m *Membrane) importValue(v interface{}) goja.Value {
	if gv, ok := v.(goja.Value); ok {
		return m.toSandbox(gv)
	}
	return m.sandbox.vm.ToValue(v)
}

func flag(b bool) goja.Flag {
	if b {
		return goja.FLAG_TRUE
	}
	return goja.FLAG_FALSE
}

func asObject(v goja.Value) *goja.Object {
	if v == nil {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return obj
}
