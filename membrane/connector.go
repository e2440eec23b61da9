package membrane

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

var (
	ErrNilRuntime = errors.New("membrane: connector requires a runtime")
	ErrNilRoot    = errors.New("membrane: connector requires a root object")
)

// Evaluator runs source code inside one realm and returns the result.
type Evaluator func(src string) (goja.Value, error)

// Connector is a capability object bound to one side of the bridge. It knows
// how to evaluate code and materialize values on that side.
type Connector struct {
	vm   *goja.Runtime
	root *goja.Object
	eval Evaluator
}

// VM returns the connector's runtime.
func (c *Connector) VM() *goja.Runtime {
	return c.vm
}

// Root returns the connector's realm root object.
func (c *Connector) Root() *goja.Object {
	return c.root
}

// Eval evaluates source code in the connector's realm.
func (c *Connector) Eval(src string) (goja.Value, error) {
	return c.eval(src)
}

// BuildHostConnector constructs the host-side connector. This is the
// expensive side: the evaluation entry point is primed and verified so that
// a broken host realm fails here rather than halfway through configuration.
// Host connectors are shared per host document and must not capture
// per-realm state.
func BuildHostConnector(vm *goja.Runtime, root *goja.Object) (*Connector, error) {
	if vm == nil {
		return nil, ErrNilRuntime
	}
	if root == nil {
		return nil, ErrNilRoot
	}

	c := &Connector{
		vm:   vm,
		root: root,
		eval: func(src string) (goja.Value, error) { return vm.RunString(src) },
	}
	if _, err := c.eval("void 0"); err != nil {
		return nil, fmt.Errorf("membrane: host evaluation entry point: %w", err)
	}
	return c, nil
}

// BuildSandboxConnector constructs a sandbox-side connector bound to the
// sandbox's own code-evaluation entry point. Sandbox connectors are cheap
// and created fresh per realm.
func BuildSandboxConnector(vm *goja.Runtime, root *goja.Object, eval Evaluator) (*Connector, error) {
	if vm == nil {
		return nil, ErrNilRuntime
	}
	if root == nil {
		return nil, ErrNilRoot
	}
	if eval == nil {
		eval = func(src string) (goja.Value, error) { return vm.RunString(src) }
	}
	return &Connector{vm: vm, root: root, eval: eval}, nil
}
