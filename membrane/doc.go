/*
Package membrane implements the bidirectional object bridge between a host
realm and a sandbox realm.

goja values are bound to the runtime that created them, so the membrane
bridges by interception rather than by sharing: primitives cross by copy,
functions cross as wrapped callables, and other objects cross as dynamic
proxy objects whose property traps delegate to the original. An identity map
guarantees that the same host object always materializes as the same
sandbox value, and that explicitly linked object pairs (the realm roots,
their documents, the fixed prototype chain, shared intrinsics) substitute
for each other instead of being wrapped.

Bridged names are installed either eagerly (RemapProperties) or lazily
(LazyRemapProperties). A lazy name is an accessor that materializes the
cross-realm link on first read and then replaces itself with a plain data
property.
*/
package membrane
