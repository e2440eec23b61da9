package realm

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/dop251/goja"

	"github.com/realmkit/realmkit/membrane"
)

// unforgeableGlobalKeys are names that cannot be intercepted on a realm
// root without breaking identity guarantees: the root's self-references,
// its document and location, and its non-configurable value properties.
var unforgeableGlobalKeys = []string{
	"globalThis", "undefined", "NaN", "Infinity",
	"window", "self", "top", "parent", "frames",
	"document", "location",
}

// poisonedGlobalKeys must never be bridged while the container is
// detachable; removing them is what makes detaching safe. keepAlive keeps
// the container attached and lifts the block.
var poisonedGlobalKeys = []string{
	"history", "navigation", "localStorage", "sessionStorage",
}

var unforgeableSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(unforgeableGlobalKeys))
	for _, k := range unforgeableGlobalKeys {
		s[k] = struct{}{}
	}
	return s
}()

// PoisonedKeys returns the block-list of names bridged only under
// keepAlive.
func PoisonedKeys() []string {
	return slices.Clone(poisonedGlobalKeys)
}

// filterGlobalKeys computes the subset of raw global names eligible for
// bridging. Pure, idempotent, order-preserving, deduplicating.
func filterGlobalKeys(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		if _, blocked := unforgeableSet[k]; blocked {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// defaultKeyCache memoizes the filtered default global key set. The default
// global surface is assumed stable for the process lifetime; the first
// caller wins.
var defaultKeyCache struct {
	once sync.Once
	keys []string
	err  error
}

func defaultGlobalKeys(host *membrane.Connector) ([]string, error) {
	defaultKeyCache.once.Do(func() {
		raw, err := enumerateGlobalOwnKeys(host)
		if err != nil {
			defaultKeyCache.err = err
			return
		}
		defaultKeyCache.keys = filterGlobalKeys(raw)
	})
	return defaultKeyCache.keys, defaultKeyCache.err
}

// enumerateGlobalOwnKeys lists the own property names of a realm root
// through its connector.
func enumerateGlobalOwnKeys(c *membrane.Connector) ([]string, error) {
	v, err := c.Eval("Object.getOwnPropertyNames(globalThis)")
	if err != nil {
		return nil, fmt.Errorf("realm: enumerate global keys: %w", err)
	}
	exported, ok := v.Export().([]interface{})
	if !ok {
		return nil, errors.New("realm: unexpected global key enumeration result")
	}
	keys := make([]string, 0, len(exported))
	for _, e := range exported {
		if s, ok := e.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys, nil
}

// shapeKeys derives a custom key set from a caller-supplied shape object.
// Map shapes are sorted for determinism.
func shapeKeys(shape interface{}) ([]string, error) {
	switch s := shape.(type) {
	case *goja.Object:
		return filterGlobalKeys(s.Keys()), nil
	case map[string]interface{}:
		names := make([]string, 0, len(s))
		for k := range s {
			names = append(names, k)
		}
		sort.Strings(names)
		return filterGlobalKeys(names), nil
	default:
		return nil, fmt.Errorf("realm: unsupported global object shape type %T", shape)
	}
}

// stripOwnedDescriptors drops endowments whose names are already claimed by
// the sandbox global's own descriptor set. Endowments can never override
// the root, prototype-chain, or event-target bridging.
func stripOwnedDescriptors(endowments membrane.DescriptorMap, owned []string) membrane.DescriptorMap {
	claimed := make(map[string]struct{}, len(owned))
	for _, k := range owned {
		claimed[k] = struct{}{}
	}
	out := make(membrane.DescriptorMap, len(endowments))
	for name, d := range endowments {
		if _, taken := claimed[name]; taken {
			continue
		}
		out[name] = d
	}
	return out
}
