package document

import (
	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Container is a hidden, sandboxed iframe-shaped element that hosts a fresh
// content document. The element is created detached; callers attach it with
// Document.AppendContainer.
type Container struct {
	id      string
	element *html.Node
	content *Document
}

// NewContainer creates a detached container with its own empty content
// document. Script execution is allowed inside the container but navigation
// and cross-container assumptions are isolated.
func NewContainer() *Container {
	id := "realm-" + uuid.NewString()
	el := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Iframe,
		Data:     "iframe",
		Attr: []html.Attribute{
			{Key: "id", Val: id},
			{Key: "sandbox", Val: "allow-scripts allow-same-origin"},
			{Key: "style", Val: "display:none"},
		},
	}
	return &Container{
		id:      id,
		element: el,
		content: NewEmpty(),
	}
}

// ID returns the container's element id.
func (c *Container) ID() string {
	return c.id
}

// Element returns the container's tree node.
func (c *Container) Element() *html.Node {
	return c.element
}

// Content returns the container's own content document.
func (c *Container) Content() *Document {
	return c.content
}

// Attached reports whether the container element currently has a parent.
func (c *Container) Attached() bool {
	return c.element.Parent != nil
}
