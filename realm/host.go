package realm

import (
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/realmkit/realmkit/document"
	"github.com/realmkit/realmkit/membrane"
)

// HostOptions configures host realm construction.
type HostOptions struct {
	Logger       *zap.Logger
	MaxCallStack int
}

// Host is a trusted realm that sandbox realms are created against.
type Host struct {
	ctx *realmContext
}

// NewHost builds a host realm over a document and registers its root so
// that CreateSandboxRealm can resolve it.
func NewHost(doc *document.Document, opts *HostOptions) (*Host, error) {
	if doc == nil {
		return nil, &InvalidTargetError{Reason: "nil host document"}
	}
	if opts == nil {
		opts = &HostOptions{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, err := newRealmContext(doc, hostRealm, opts.MaxCallStack, log.Named("host"))
	if err != nil {
		return nil, err
	}
	h := &Host{ctx: ctx}

	hostRegistry.mu.Lock()
	hostRegistry.byRoot[ctx.global] = h
	hostRegistry.mu.Unlock()
	return h, nil
}

// Root returns the host realm's root object.
func (h *Host) Root() *goja.Object {
	return h.ctx.global
}

// VM returns the host runtime.
func (h *Host) VM() *goja.Runtime {
	return h.ctx.vm
}

// Document returns the host document.
func (h *Host) Document() *document.Document {
	return h.ctx.doc
}

// Evaluate runs source code in the host realm.
func (h *Host) Evaluate(src string) (goja.Value, error) {
	return h.ctx.vm.RunString(src)
}

// CreateSandboxRealm creates a sandbox realm against this host.
func (h *Host) CreateSandboxRealm(opts *Options) (*membrane.Membrane, error) {
	return CreateSandboxRealm(h.ctx.global, opts)
}

// Close unregisters the host and drops its connector cache entry. Existing
// membranes remain valid.
func (h *Host) Close() {
	hostRegistry.mu.Lock()
	delete(hostRegistry.byRoot, h.ctx.global)
	hostRegistry.mu.Unlock()
	hostConnectors.drop(h.ctx.doc)
}

var hostRegistry = struct {
	mu     sync.RWMutex
	byRoot map[*goja.Object]*Host
}{byRoot: make(map[*goja.Object]*Host)}

// hostRealmReference is the resolved, immutable view of a host realm used
// during one setup call: the document, the root, and the fixed set of
// well-known sub-objects.
type hostRealmReference struct {
	host                 *Host
	doc                  *document.Document
	vm                   *goja.Runtime
	root                 *goja.Object
	documentObj          *goja.Object
	contentRootProto     *goja.Object
	eventDispatchProto   *goja.Object
	eventDispatchOwnKeys []string
}

// resolveHostRealmReference resolves the realm reference for a registered
// host root, or nil when the root is unknown.
func resolveHostRealmReference(root *goja.Object) *hostRealmReference {
	hostRegistry.mu.RLock()
	h := hostRegistry.byRoot[root]
	hostRegistry.mu.RUnlock()
	if h == nil {
		return nil
	}
	return &hostRealmReference{
		host:                 h,
		doc:                  h.ctx.doc,
		vm:                   h.ctx.vm,
		root:                 h.ctx.global,
		documentObj:          h.ctx.documentObj,
		contentRootProto:     h.ctx.bodyProto,
		eventDispatchProto:   h.ctx.eventTargetProto,
		eventDispatchOwnKeys: h.ctx.eventTargetKeys,
	}
}
