package membrane

import (
	"context"
	"time"

	"github.com/dop251/goja"
)

// DefaultEvalTimeout bounds sandbox evaluation when the caller does not
// supply a timeout.
const DefaultEvalTimeout = 5 * time.Second

// Evaluate runs a script inside the sandbox realm through the sandbox
// connector, interrupting execution when the timeout elapses or the context
// is cancelled.
func (m *Membrane) Evaluate(ctx context.Context, script string, timeout time.Duration) (goja.Value, error) {
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := make(chan struct{})
	idle := make(chan struct{})

	vm := m.sandbox.vm
	go func() {
		defer close(idle)
		select {
		case <-timer.C:
			vm.Interrupt("evaluation timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	v, err := m.sandbox.Eval(script)

	// The watchdog must be parked before the interrupt is cleared, or it
	// could fire afterwards and poison the next evaluation.
	close(done)
	<-idle
	vm.ClearInterrupt()
	return v, err
}
