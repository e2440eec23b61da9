/*
Package document models the host-side HTML document tree that sandbox
containers attach to.

A Document wraps a golang.org/x/net/html node tree with a goquery view for
selector lookups and an htmlquery entry point for XPath. Containers are
hidden, sandboxed iframe-shaped elements appended as the last child of the
content root (the <body> element) or, when no content root exists, the
document element itself.

Documents also expose the open/close cycling used by the keep-alive
lifecycle: cycling forces the hosting engine to retain a live reference to a
container's content document after configuration.
*/
package document
