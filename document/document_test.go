package document

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const pageMarkup = `<html><head><title>t</title></head><body><div id="app" class="panel">hello</div></body></html>`

func TestParseAndQuery(t *testing.T) {
	doc, err := ParseString(pageMarkup)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	tests := []struct {
		name     string
		selector string
		wantLen  int
	}{
		{name: "id selector", selector: "#app", wantLen: 1},
		{name: "class selector", selector: ".panel", wantLen: 1},
		{name: "tag selector", selector: "div", wantLen: 1},
		{name: "non-existent", selector: "#missing", wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(doc.Find(tt.selector)); got != tt.wantLen {
				t.Errorf("Find(%s) returned %d nodes, want %d", tt.selector, got, tt.wantLen)
			}
		})
	}
}

func TestParseRejectsOversizedReader(t *testing.T) {
	filler := strings.NewReader(strings.Repeat("x", MaxHTMLSize))
	r := io.MultiReader(
		strings.NewReader(`<html><body><p>`),
		filler,
		strings.NewReader(`</p><div id="tail"></div></body></html>`),
	)

	_, err := Parse(r)
	if !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected ErrInputTooLarge, got %v", err)
	}
}

func TestParseReaderWithinLimit(t *testing.T) {
	doc, err := Parse(strings.NewReader(pageMarkup))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := len(doc.Find("#app")); got != 1 {
		t.Fatalf("expected 1 #app node, got %d", got)
	}
}

func TestQueryXPath(t *testing.T) {
	doc, err := ParseString(pageMarkup)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	nodes, err := doc.QueryXPath(`//div[@id="app"]`)
	if err != nil {
		t.Fatalf("QueryXPath() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Errorf("QueryXPath() returned %d nodes, want 1", len(nodes))
	}
}

func TestParseSanitizedStripsScripts(t *testing.T) {
	doc, err := ParseSanitizedString(`<html><body><script>alert(1)</script><p onclick="x()">ok</p></body></html>`)
	if err != nil {
		t.Fatalf("ParseSanitizedString() error = %v", err)
	}

	if n := len(doc.Find("script")); n != 0 {
		t.Errorf("expected script elements stripped, found %d", n)
	}
	p := doc.Find("p")
	if len(p) != 1 {
		t.Fatalf("expected <p> to survive sanitization")
	}
	for _, a := range p[0].Attr {
		if a.Key == "onclick" {
			t.Error("expected onclick attribute stripped")
		}
	}
}

func TestAppendContainerLastChild(t *testing.T) {
	doc, err := ParseString(pageMarkup)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	c := NewContainer()

	if err := doc.AppendContainer(c); err != nil {
		t.Fatalf("AppendContainer() error = %v", err)
	}

	body := doc.ContentRoot()
	if body == nil {
		t.Fatal("expected a content root")
	}
	if body.LastChild != c.Element() {
		t.Error("container is not the last child of the content root")
	}
	if !doc.Contains(c.Element()) {
		t.Error("Contains() = false for attached container")
	}
	if !c.Attached() {
		t.Error("Attached() = false after append")
	}
}

func TestAppendContainerFallbackWithoutContentRoot(t *testing.T) {
	// A hand-built fragment with no <body>: attachment falls back to the
	// document element.
	root := &html.Node{Type: html.DocumentNode}
	doc := &Document{root: root, sel: goquery.NewDocumentFromNode(root)}
	c := NewContainer()

	if err := doc.AppendContainer(c); err != nil {
		t.Fatalf("AppendContainer() error = %v", err)
	}
	if root.LastChild != c.Element() {
		t.Error("container not appended to the document element fallback")
	}
}

func TestRemoveContainer(t *testing.T) {
	doc, err := ParseString(pageMarkup)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	c := NewContainer()
	if err := doc.AppendContainer(c); err != nil {
		t.Fatalf("AppendContainer() error = %v", err)
	}

	if err := doc.RemoveContainer(c); err != nil {
		t.Fatalf("RemoveContainer() error = %v", err)
	}
	if doc.Contains(c.Element()) {
		t.Error("Contains() = true after removal")
	}
	if c.Attached() {
		t.Error("Attached() = true after removal")
	}

	// Removing twice is a no-op.
	if err := doc.RemoveContainer(c); err != nil {
		t.Errorf("second RemoveContainer() error = %v", err)
	}
}

func TestOpenCloseCycles(t *testing.T) {
	doc := NewEmpty()

	if doc.Cycles() != 0 {
		t.Fatalf("fresh document has %d cycles", doc.Cycles())
	}
	doc.Open()
	if !doc.IsOpen() {
		t.Error("IsOpen() = false after Open()")
	}
	doc.Close()
	if doc.IsOpen() {
		t.Error("IsOpen() = true after Close()")
	}
	if doc.Cycles() != 1 {
		t.Errorf("Cycles() = %d, want 1", doc.Cycles())
	}
}

func TestContainerContent(t *testing.T) {
	c := NewContainer()

	if c.Content() == nil {
		t.Fatal("container has no content document")
	}
	if c.Content().ContentRoot() == nil {
		t.Error("container content document has no body")
	}
	if !strings.HasPrefix(c.ID(), "realm-") {
		t.Errorf("unexpected container id %q", c.ID())
	}
}
