package realm

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/realmkit/realmkit/membrane"
)

// CreateSandboxRealm builds a sandbox realm against a registered host root
// and returns the configured membrane. The whole sequence is synchronous:
// either a fully configured membrane is returned or the call fails. When a
// step after container attachment fails, the orphaned container is not
// cleaned up here; retrying automatically would risk leaking multiple
// attached containers.
func CreateSandboxRealm(hostRoot *goja.Object, opts *Options) (*membrane.Membrane, error) {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	instr := opts.Instrumentation
	if instr == nil {
		instr = nopInstrumentation{}
	}

	if hostRoot == nil {
		return nil, &InvalidTargetError{Reason: "nil host root object"}
	}
	ref := resolveHostRealmReference(hostRoot)
	if ref == nil {
		return nil, &InvalidTargetError{Reason: "host root does not belong to a registered host realm"}
	}

	start := time.Now()
	frame, err := createContainer(ref, log.Named("sandbox"))
	if err != nil {
		return nil, err
	}

	mem, err := configureMembrane(ref, frame, opts, instr, log)
	if err != nil {
		return nil, err
	}

	if err := finalizeLifecycle(ref, frame, opts.KeepAlive); err != nil {
		return nil, err
	}

	instr.RealmCreated(frame.container.ID(), time.Since(start))
	log.Debug("sandbox realm ready",
		zap.String("container", frame.container.ID()),
		zap.Bool("keep_alive", opts.KeepAlive))
	return mem, nil
}

// configureMembrane performs the fixed-order configuration pass: connectors,
// membrane construction, intrinsic and root linking, prototype-chain
// linking, lazy global installation, endowment merging, and event-dispatch
// bridging.
func configureMembrane(ref *hostRealmReference, frame *sandboxFrame, opts *Options, instr Instrumentation, log *zap.Logger) (*membrane.Membrane, error) {
	hostConn, hit, err := hostConnectors.getOrCreate(ref.doc, func() (*membrane.Connector, error) {
		return membrane.BuildHostConnector(ref.vm, ref.root)
	})
	if err != nil {
		return nil, fmt.Errorf("realm: host connector: %w", err)
	}
	instr.ConnectorCacheLookup(hit)

	sbxConn, err := membrane.BuildSandboxConnector(frame.ctx.vm, frame.ctx.global, nil)
	if err != nil {
		return nil, fmt.Errorf("realm: sandbox connector: %w", err)
	}

	mem, err := membrane.New(hostConn, sbxConn, &membrane.Options{
		Distortion:      opts.DistortionCallback,
		Instrumentation: instr,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}

	mem.LinkIntrinsics()

	// Roots, the mutually-referential document, and the three-level
	// prototype chain under the root.
	linkPaths := [][]string{
		{"window"},
		{"document"},
		{"__proto__"},
		{"__proto__", "__proto__"},
		{"__proto__", "__proto__", "__proto__"},
	}
	for _, path := range linkPaths {
		if err := mem.Link(path...); err != nil {
			return nil, err
		}
	}

	if err := mem.RemapPrototype(frame.ctx.bodyObj, ref.contentRootProto); err != nil {
		return nil, err
	}

	var keys []string
	if opts.GlobalObjectShape != nil {
		keys, err = shapeKeys(opts.GlobalObjectShape)
	} else {
		keys, err = defaultGlobalKeys(hostConn)
	}
	if err != nil {
		return nil, err
	}
	var exclude []string
	if !opts.KeepAlive {
		exclude = poisonedGlobalKeys
	}
	if err := mem.LazyRemapProperties(frame.ctx.global, ref.root, keys, exclude); err != nil {
		return nil, err
	}

	if len(opts.Endowments) > 0 {
		owned, err := enumerateGlobalOwnKeys(sbxConn)
		if err != nil {
			return nil, err
		}
		filtered := stripOwnedDescriptors(opts.Endowments, owned)
		if err := mem.RemapProperties(frame.ctx.global, filtered); err != nil {
			return nil, err
		}
	}

	if err := mem.LazyRemapProperties(frame.ctx.eventTargetProto, ref.eventDispatchProto, ref.eventDispatchOwnKeys, nil); err != nil {
		return nil, err
	}

	// The window prototype carries nothing that needs bridging, and the
	// shared-properties prototype provides live named lookup that must not
	// be snapshotted; neither surface is remapped.
	return mem, nil
}
