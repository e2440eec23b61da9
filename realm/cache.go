package realm

import (
	"runtime"
	"sync"
	"weak"

	"github.com/realmkit/realmkit/document"
	"github.com/realmkit/realmkit/membrane"
)

// connectorCache shares one host-side connector per distinct host document.
// Keys are held weakly and entries are evicted when the document becomes
// unreachable. A cached connector's realm keeps its own document reachable
// through the global's closures, so hosts additionally drop their entry on
// Close. Construction is serialized per key so concurrent calls against the
// same document agree on a single winner.
type connectorCache struct {
	mu      sync.Mutex
	entries map[weak.Pointer[document.Document]]*connectorEntry
}

type connectorEntry struct {
	once sync.Once
	conn *membrane.Connector
	err  error
}

var hostConnectors = &connectorCache{
	entries: make(map[weak.Pointer[document.Document]]*connectorEntry),
}

// getOrCreate returns the connector for a document, building it at most
// once. The hit result reports whether an already built connector was
// reused. Build failures are not cached.
func (c *connectorCache) getOrCreate(doc *document.Document, build func() (*membrane.Connector, error)) (conn *membrane.Connector, hit bool, err error) {
	key := weak.Make(doc)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &connectorEntry{}
		c.entries[key] = e
		runtime.AddCleanup(doc, func(k weak.Pointer[document.Document]) {
			c.evict(k)
		}, key)
	}
	c.mu.Unlock()

	built := false
	e.once.Do(func() {
		built = true
		e.conn, e.err = build()
	})
	if e.err != nil {
		c.evict(key)
		return nil, false, e.err
	}
	return e.conn, !built, nil
}

// drop removes the entry for a document, if any.
func (c *connectorCache) drop(doc *document.Document) {
	c.evict(weak.Make(doc))
}

func (c *connectorCache) evict(key weak.Pointer[document.Document]) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *connectorCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
