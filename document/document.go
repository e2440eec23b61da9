package document

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// MaxHTMLSize limits parsed input to 10MB to prevent memory exhaustion.
const MaxHTMLSize = 10 * 1024 * 1024

const emptyMarkup = "<!DOCTYPE html><html><head></head><body></body></html>"

var (
	ErrInputTooLarge = errors.New("document: input exceeds size limit")
	ErrNilContainer  = errors.New("document: nil container")
)

// sanitizer strips scripts and event handlers from untrusted markup before
// it becomes part of a host tree.
var sanitizer = bluemonday.UGCPolicy()

// Document is a mutable HTML document tree with a selector view.
type Document struct {
	mu     sync.RWMutex
	root   *html.Node
	sel    *goquery.Document
	open   bool
	cycles int
}

// Parse reads and parses an HTML document.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxHTMLSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxHTMLSize {
		return nil, ErrInputTooLarge
	}
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &Document{
		root: root,
		sel:  goquery.NewDocumentFromNode(root),
	}, nil
}

// ParseString parses trusted HTML markup.
func ParseString(markup string) (*Document, error) {
	if len(markup) > MaxHTMLSize {
		return nil, ErrInputTooLarge
	}
	return Parse(strings.NewReader(markup))
}

// ParseSanitizedString sanitizes untrusted markup before parsing it.
func ParseSanitizedString(markup string) (*Document, error) {
	if len(markup) > MaxHTMLSize {
		return nil, ErrInputTooLarge
	}
	return ParseString(sanitizer.Sanitize(markup))
}

// NewEmpty creates a minimal document with a head and body.
func NewEmpty() *Document {
	d, err := ParseString(emptyMarkup)
	if err != nil {
		// The static markup above always parses.
		panic(err)
	}
	return d
}

// Root returns the document root node.
func (d *Document) Root() *html.Node {
	return d.root
}

// ContentRoot returns the <body> element, or nil when the document has none.
func (d *Document) ContentRoot() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if nodes := d.sel.Find("body").Nodes; len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// DocumentElement returns the <html> element, or the root node itself for
// fragment trees.
func (d *Document) DocumentElement() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if nodes := d.sel.Find("html").Nodes; len(nodes) > 0 {
		return nodes[0]
	}
	return d.root
}

// Find returns the nodes matching a CSS selector.
func (d *Document) Find(selector string) []*html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sel.Find(selector).Nodes
}

// Selection returns a goquery selection for a CSS selector.
func (d *Document) Selection(selector string) *goquery.Selection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sel.Find(selector)
}

// QueryXPath returns the nodes matching an XPath expression.
func (d *Document) QueryXPath(expr string) ([]*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return htmlquery.QueryAll(d.root, expr)
}

// AppendContainer attaches a container element as the last child of the
// content root, falling back to the document element when no body exists.
func (d *Document) AppendContainer(c *Container) error {
	if c == nil {
		return ErrNilContainer
	}

	parent := d.ContentRoot()
	if parent == nil {
		parent = d.DocumentElement()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	parent.AppendChild(c.element)
	return nil
}

// RemoveContainer detaches a container element from the tree. Removing an
// already detached container is a no-op.
func (d *Document) RemoveContainer(c *Container) error {
	if c == nil {
		return ErrNilContainer
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if c.element.Parent == nil {
		return nil
	}
	c.element.Parent.RemoveChild(c.element)
	return nil
}

// Contains reports whether a node is part of this document tree.
func (d *Document) Contains(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

// Open begins an open/close cycle on the document.
func (d *Document) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	d.cycles++
}

// Close ends an open/close cycle.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
}

// IsOpen reports whether the document is mid-cycle.
func (d *Document) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.open
}

// Cycles returns how many open/close cycles the document has been through.
func (d *Document) Cycles() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cycles
}

// Render writes the document tree as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}
