package realm

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/realmkit/realmkit/document"
)

// defaultMaxCallStack bounds recursion depth in every realm runtime.
const defaultMaxCallStack = 1024

type realmKind int

const (
	hostRealm realmKind = iota
	sandboxRealm
)

// realmContext is one execution context: a goja runtime, its global object,
// the document it is bound over, and the fixed prototype chain under the
// global. Host contexts additionally carry the poisoned surfaces; sandbox
// contexts are created without them, which is what makes their container
// safely detachable.
type realmContext struct {
	kind   realmKind
	vm     *goja.Runtime
	global *goja.Object
	doc    *document.Document
	log    *zap.Logger

	documentObj *goja.Object
	bodyObj     *goja.Object
	bodyProto   *goja.Object

	windowProto      *goja.Object
	windowPropsProto *goja.Object
	eventTargetProto *goja.Object
	eventTargetKeys  []string

	listeners map[string][]eventListener
}

type eventListener struct {
	raw goja.Value
	fn  goja.Callable
}

func newRealmContext(doc *document.Document, kind realmKind, maxCallStack int, log *zap.Logger) (*realmContext, error) {
	if maxCallStack <= 0 {
		maxCallStack = defaultMaxCallStack
	}
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStack)

	rc := &realmContext{
		kind:      kind,
		vm:        vm,
		global:    vm.GlobalObject(),
		doc:       doc,
		log:       log,
		listeners: make(map[string][]eventListener),
	}
	if err := rc.setupPrototypeChain(); err != nil {
		return nil, err
	}
	rc.setupGlobals()
	rc.setupDocument()
	if kind == hostRealm {
		rc.setupPoisonedSurfaces()
	}
	return rc, nil
}

// setupPrototypeChain builds the fixed three-level inheritance under the
// global: window prototype, shared-properties prototype, event-dispatch
// prototype. Generic property enumeration does not discover this chain, so
// the configurator links it explicitly.
func (rc *realmContext) setupPrototypeChain() error {
	vm := rc.vm

	rc.eventTargetProto = vm.NewObject()
	rc.eventTargetKeys = []string{"addEventListener", "removeEventListener", "dispatchEvent"}

	rc.eventTargetProto.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		event := call.Argument(0).String()
		raw := call.Argument(1)
		if fn, ok := goja.AssertFunction(raw); ok {
			rc.listeners[event] = append(rc.listeners[event], eventListener{raw: raw, fn: fn})
		}
		return goja.Undefined()
	})
	rc.eventTargetProto.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		event := call.Argument(0).String()
		raw := call.Argument(1)
		kept := rc.listeners[event][:0]
		for _, l := range rc.listeners[event] {
			if !l.raw.StrictEquals(raw) {
				kept = append(kept, l)
			}
		}
		rc.listeners[event] = kept
		return goja.Undefined()
	})
	rc.eventTargetProto.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(false)
		}
		evt := call.Argument(0)
		tv := evt.ToObject(vm).Get("type")
		if tv == nil || goja.IsUndefined(tv) || goja.IsNull(tv) {
			return vm.ToValue(false)
		}
		event := tv.String()
		for _, l := range rc.listeners[event] {
			if _, err := l.fn(goja.Undefined(), evt); err != nil {
				rc.log.Warn("event listener failed",
					zap.String("event", event), zap.Error(err))
			}
		}
		return vm.ToValue(true)
	})

	rc.windowPropsProto = rc.vm.NewObject()
	if err := rc.windowPropsProto.SetPrototype(rc.eventTargetProto); err != nil {
		return err
	}
	rc.windowProto = rc.vm.NewObject()
	if err := rc.windowProto.SetPrototype(rc.windowPropsProto); err != nil {
		return err
	}
	return rc.global.SetPrototype(rc.windowProto)
}

// setupGlobals configures the browser-shaped global surface.
func (rc *realmContext) setupGlobals() {
	vm := rc.vm
	g := rc.global

	for _, name := range []string{"window", "self", "top", "parent", "frames"} {
		g.Set(name, g)
	}

	location := vm.NewObject()
	location.Set("href", "about:blank")
	location.Set("protocol", "about:")
	location.Set("pathname", "blank")
	location.Set("reload", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	g.Set("location", location)

	navigator := vm.NewObject()
	navigator.Set("userAgent", "realmkit")
	g.Set("navigator", navigator)

	rc.setupConsole()

	// Timers are no-ops: nothing may schedule execution past the
	// synchronous setup pass.
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	g.Set("setTimeout", noop)
	g.Set("setInterval", noop)
	g.Set("clearTimeout", noop)
	g.Set("clearInterval", noop)
}

// setupConsole routes console output into the structured logger.
func (rc *realmContext) setupConsole() {
	console := rc.vm.NewObject()
	console.Set("log", rc.makeConsoleFunc(rc.log.Info))
	console.Set("info", rc.makeConsoleFunc(rc.log.Info))
	console.Set("warn", rc.makeConsoleFunc(rc.log.Warn))
	console.Set("error", rc.makeConsoleFunc(rc.log.Error))
	rc.global.Set("console", console)
}

func (rc *realmContext) makeConsoleFunc(emit func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		emit(strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// setupDocument binds the document object over the context's HTML tree. The
// document and the global are mutually referential: document.defaultView is
// the global itself.
func (rc *realmContext) setupDocument() {
	vm := rc.vm

	rc.bodyProto = vm.NewObject()
	rc.bodyObj = vm.NewObject()
	rc.bodyObj.SetPrototype(rc.bodyProto)

	docObj := vm.NewObject()
	docObj.Set("defaultView", rc.global)
	docObj.Set("body", rc.bodyObj)
	docObj.Set("readyState", "complete")

	docObj.Set("querySelector", rc.makeQueryFunc(false))
	docObj.Set("querySelectorAll", rc.makeQueryFunc(true))
	docObj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		nodes := rc.doc.Find("#" + call.Argument(0).String())
		if len(nodes) == 0 {
			return goja.Null()
		}
		return vm.ToValue(rc.elementProxy(nodes[0]))
	})
	docObj.Set("getElementsByTagName", rc.makeQueryFunc(true))

	rc.documentObj = docObj
	rc.global.Set("document", docObj)
}

// makeQueryFunc creates a selector lookup returning element proxies.
func (rc *realmContext) makeQueryFunc(all bool) func(goja.FunctionCall) goja.Value {
	vm := rc.vm
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		nodes := rc.doc.Find(call.Argument(0).String())
		if all {
			proxies := make([]interface{}, len(nodes))
			for i, n := range nodes {
				proxies[i] = rc.elementProxy(n)
			}
			return vm.ToValue(proxies)
		}
		if len(nodes) == 0 {
			return goja.Null()
		}
		return vm.ToValue(rc.elementProxy(nodes[0]))
	}
}

// elementProxy exposes a tree node to script.
func (rc *realmContext) elementProxy(n *html.Node) map[string]interface{} {
	getAttr := func(name string) string {
		for _, a := range n.Attr {
			if a.Key == name {
				return a.Val
			}
		}
		return ""
	}
	setAttr := func(name, value string) {
		for i, a := range n.Attr {
			if a.Key == name {
				n.Attr[i].Val = value
				return
			}
		}
		n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	}
	return map[string]interface{}{
		"tagName":      strings.ToUpper(n.Data),
		"id":           getAttr("id"),
		"className":    getAttr("class"),
		"textContent":  nodeText(n),
		"getAttribute": getAttr,
		"setAttribute": setAttr,
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// setupPoisonedSurfaces installs the host-only globals that are unsafe to
// expose from a detachable container.
func (rc *realmContext) setupPoisonedSurfaces() {
	vm := rc.vm
	g := rc.global
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }

	history := vm.NewObject()
	history.Set("length", 1)
	history.Set("back", noop)
	history.Set("forward", noop)
	history.Set("go", noop)
	g.Set("history", history)

	navigation := vm.NewObject()
	entry := vm.NewObject()
	entry.Set("url", "about:blank")
	navigation.Set("currentEntry", entry)
	navigation.Set("navigate", noop)
	g.Set("navigation", navigation)

	g.Set("localStorage", rc.newStorage())
	g.Set("sessionStorage", rc.newStorage())
}

// newStorage builds a map-backed Storage-shaped object.
func (rc *realmContext) newStorage() *goja.Object {
	vm := rc.vm
	store := make(map[string]string)

	obj := vm.NewObject()
	obj.Set("getItem", func(call goja.FunctionCall) goja.Value {
		if v, ok := store[call.Argument(0).String()]; ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	obj.Set("setItem", func(call goja.FunctionCall) goja.Value {
		store[call.Argument(0).String()] = call.Argument(1).String()
		return goja.Undefined()
	})
	obj.Set("removeItem", func(call goja.FunctionCall) goja.Value {
		delete(store, call.Argument(0).String())
		return goja.Undefined()
	})
	obj.Set("clear", func(call goja.FunctionCall) goja.Value {
		clear(store)
		return goja.Undefined()
	})
	return obj
}
