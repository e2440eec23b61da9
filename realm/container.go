package realm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/realmkit/realmkit/document"
)

// sandboxFrame pairs an attached container with the fresh execution context
// it hosts.
type sandboxFrame struct {
	container *document.Container
	ctx       *realmContext
}

// createContainer builds a hidden sandboxed container, attaches it as the
// last child of the host content root, and constructs the execution context
// it hosts. Once the container is attached, cleanup after a later failure
// is the caller's responsibility.
func createContainer(ref *hostRealmReference, log *zap.Logger) (*sandboxFrame, error) {
	c := document.NewContainer()
	if err := ref.doc.AppendContainer(c); err != nil {
		return nil, fmt.Errorf("realm: attach container: %w", err)
	}
	ctx, err := newRealmContext(c.Content(), sandboxRealm, 0, log)
	if err != nil {
		return nil, fmt.Errorf("realm: sandbox execution context: %w", err)
	}
	return &sandboxFrame{container: c, ctx: ctx}, nil
}
