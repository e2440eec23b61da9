package realm

import (
	"time"

	"go.uber.org/zap"

	"github.com/realmkit/realmkit/membrane"
)

// Instrumentation extends the membrane's observability hooks with
// realm-level events. No method affects bridging semantics.
type Instrumentation interface {
	membrane.Instrumentation

	// RealmCreated fires once per successful setup call.
	RealmCreated(containerID string, setup time.Duration)

	// ConnectorCacheLookup fires once per setup call with the cache outcome.
	ConnectorCacheLookup(hit bool)
}

type nopInstrumentation struct{}

func (nopInstrumentation) KeyBridged(string, bool)            {}
func (nopInstrumentation) LazyMaterialized(string)            {}
func (nopInstrumentation) RealmCreated(string, time.Duration) {}
func (nopInstrumentation) ConnectorCacheLookup(bool)          {}

// Options configures one CreateSandboxRealm call.
type Options struct {
	// DistortionCallback may substitute any host value about to be exposed
	// to the sandbox. Identity when nil.
	DistortionCallback membrane.DistortionFunc

	// Endowments are installed eagerly after protected-name filtering.
	Endowments membrane.DescriptorMap

	// GlobalObjectShape overrides the cached default key set with the own
	// keys of the supplied shape: a *goja.Object or a
	// map[string]interface{}.
	GlobalObjectShape interface{}

	// KeepAlive keeps the container attached (cycling its content document)
	// and lifts the poisoned-name block.
	KeepAlive bool

	// Instrumentation receives observability callbacks.
	Instrumentation Instrumentation

	// Logger defaults to a nop logger.
	Logger *zap.Logger
}
