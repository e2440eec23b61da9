/*
Package realm creates disposable sandbox execution contexts bridged to a
trusted host context through a membrane.

# Overview

A host realm is a goja runtime with a browser-shaped global surface bound
over an HTML document tree. CreateSandboxRealm builds a hidden, sandboxed
container inside the host document, obtains the fresh execution context it
hosts, and wires a membrane between the two realms in a single synchronous
pass:

 1. Resolve the shared host-side connector (cached per host document) and
    build a fresh sandbox-side connector.
 2. Construct the membrane with the caller's distortion callback and
    instrumentation hooks.
 3. Link shared intrinsics, the realm roots, the document, and the
    fixed three-level prototype chain under the root.
 4. Install the eligible global key set lazily, apply endowments eagerly
    after protected-name filtering, and bridge the event-dispatch surface.
 5. Detach the container, or keep it alive and cycle its content document.

# Security Model

Unforgeable names (window, document, location and the root's value
properties) are never bridged through accessors. Poisoned names (history,
navigation, storage) are withheld unless the caller opts into keepAlive,
because exposing them only stays sound while the container remains
attached.

# Usage

	doc := document.NewEmpty()
	host, _ := realm.NewHost(doc, nil)
	mem, err := realm.CreateSandboxRealm(host.Root(), &realm.Options{
		Endowments: membrane.DescriptorMap{
			"answer": membrane.DataDescriptor(42),
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	v, _ := mem.Evaluate(ctx, "answer * 2", 0)
*/
package realm
