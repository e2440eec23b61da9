package membrane

import (
	"context"
	"testing"
	"time"

	"github.com/dop251/goja"
)

type countingInstr struct {
	bridged      int
	materialized int
}

func (c *countingInstr) KeyBridged(string, bool) { c.bridged++ }
func (c *countingInstr) LazyMaterialized(string) { c.materialized++ }

func newTestMembrane(t *testing.T, opts *Options) (*goja.Runtime, *goja.Runtime, *Membrane) {
	t.Helper()

	hostVM := goja.New()
	sandboxVM := goja.New()

	host, err := BuildHostConnector(hostVM, hostVM.GlobalObject())
	if err != nil {
		t.Fatalf("BuildHostConnector() error = %v", err)
	}
	sandbox, err := BuildSandboxConnector(sandboxVM, sandboxVM.GlobalObject(), nil)
	if err != nil {
		t.Fatalf("BuildSandboxConnector() error = %v", err)
	}
	m, err := New(host, sandbox, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return hostVM, sandboxVM, m
}

func mustEval(t *testing.T, m *Membrane, src string) goja.Value {
	t.Helper()
	v, err := m.SandboxConnector().Eval(src)
	if err != nil {
		t.Fatalf("sandbox eval %q error = %v", src, err)
	}
	return v
}

func mustRun(t *testing.T, vm *goja.Runtime, src string) {
	t.Helper()
	if _, err := vm.RunString(src); err != nil {
		t.Fatalf("host eval %q error = %v", src, err)
	}
}

func TestLazyBridgePrimitive(t *testing.T) {
	hostVM, _, m := newTestMembrane(t, nil)
	mustRun(t, hostVM, "var answer = 42")

	if err := m.LazyRemapProperties(m.SandboxRoot(), m.HostConnector().Root(), []string{"answer"}, nil); err != nil {
		t.Fatalf("LazyRemapProperties() error = %v", err)
	}
	if got := mustEval(t, m, "answer").ToInteger(); got != 42 {
		t.Errorf("answer = %d, want 42", got)
	}
}

func TestLazyBridgeMaterializesOnce(t *testing.T) {
	instr := &countingInstr{}
	hostVM, _, m := newTestMembrane(t, &Options{Instrumentation: instr})
	mustRun(t, hostVM, "var v = {n: 1}")

	if err := m.LazyRemapProperties(m.SandboxRoot(), m.HostConnector().Root(), []string{"v"}, nil); err != nil {
		t.Fatalf("LazyRemapProperties() error = %v", err)
	}

	mustEval(t, m, "v.n")
	mustEval(t, m, "v.n")
	mustEval(t, m, "v.n")

	if instr.materialized != 1 {
		t.Errorf("materializations = %d, want 1", instr.materialized)
	}
	if instr.bridged != 1 {
		t.Errorf("bridged keys = %d, want 1", instr.bridged)
	}
}

func TestLazyBridgeExcludeList(t *testing.T) {
	hostVM, _, m := newTestMembrane(t, nil)
	mustRun(t, hostVM, "var kept = 1; var blocked = 2")

	err := m.LazyRemapProperties(m.SandboxRoot(), m.HostConnector().Root(),
		[]string{"kept", "blocked"}, []string{"blocked"})
	if err != nil {
		t.Fatalf("LazyRemapProperties() error = %v", err)
	}

	if got := mustEval(t, m, "typeof kept").String(); got != "number" {
		t.Errorf("typeof kept = %q, want number", got)
	}
	if got := mustEval(t, m, "typeof blocked").String(); got != "undefined" {
		t.Errorf("typeof blocked = %q, want undefined", got)
	}
}

func TestFunctionBridging(t *testing.T) {
	hostVM, _, m := newTestMembrane(t, nil)
	mustRun(t, hostVM, "function add(a, b) { return a + b }")

	if err := m.LazyRemapProperties(m.SandboxRoot(), m.HostConnector().Root(), []string{"add"}, nil); err != nil {
		t.Fatalf("LazyRemapProperties() error = %v", err)
	}
	if got := mustEval(t, m, "add(2, 3)").ToInteger(); got != 5 {
		t.Errorf("add(2, 3) = %d, want 5", got)
	}
}

func TestObjectProxyBridging(t *testing.T) {
	hostVM, _, m := newTestMembrane(t, nil)
	mustRun(t, hostVM, "var cfg = {name: 'original', nested: {depth: 7}}")

	if err := m.LazyRemapProperties(m.SandboxRoot(), m.HostConnector().Root(), []string{"cfg"}, nil); err != nil {
		t.Fatalf("LazyRemapProperties() error = %v", err)
	}

	if got := mustEval(t, m, "cfg.nested.depth").ToInteger(); got != 7 {
		t.Errorf("cfg.nested.depth = %d, want 7", got)
	}

	// Proxy identity is stable across reads.
	if got := mustEval(t, m, "cfg.nested === cfg.nested").ToBoolean(); !got {
		t.Error("nested proxy identity not preserved")
	}

	// Writes propagate back to the host realm.
	mustEval(t, m, "cfg.name = 'changed'")
	v, err := hostVM.RunString("cfg.name")
	if err != nil {
		t.Fatalf("host read-back error = %v", err)
	}
	if v.String() != "changed" {
		t.Errorf("host cfg.name = %q, want changed", v.String())
	}
}

func TestLinkedObjectsSubstituteForEachOther(t *testing.T) {
	hostVM, _, m := newTestMembrane(t, nil)
	m.LinkIntrinsics()
	mustRun(t, hostVM, "var arr = [1, 2, 3]")

	if err := m.LazyRemapProperties(m.SandboxRoot(), m.HostConnector().Root(), []string{"Math", "arr"}, nil); err != nil {
		t.Fatalf("LazyRemapProperties() error = %v", err)
	}

	// A bridged intrinsic resolves to the sandbox's own copy.
	if got := mustEval(t, m, "Math.sqrt(16)").ToInteger(); got != 4 {
		t.Errorf("Math.sqrt(16) = %d, want 4", got)
	}

	// Host arrays cross as live proxies.
	if got := mustEval(t, m, "arr.length").ToInteger(); got != 3 {
		t.Errorf("arr.length = %d, want 3", got)
	}
	if got := mustEval(t, m, "arr[1]").ToInteger(); got != 2 {
		t.Errorf("arr[1] = %d, want 2", got)
	}
}

func TestDistortionSubstitutesValues(t *testing.T) {
	var hostVM *goja.Runtime
	distortion := func(v goja.Value) goja.Value {
		if v.String() == "secret" {
			return hostVM.ToValue("redacted")
		}
		return nil
	}

	var m *Membrane
	hostVM, _, m = newTestMembrane(t, nil)
	m.distortion = distortion
	mustRun(t, hostVM, "var token = 'secret'; var open = 'public'")

	if err := m.LazyRemapProperties(m.SandboxRoot(), m.HostConnector().Root(), []string{"token", "open"}, nil); err != nil {
		t.Fatalf("LazyRemapProperties() error = %v", err)
	}
	if got := mustEval(t, m, "token").String(); got != "redacted" {
		t.Errorf("token = %q, want redacted", got)
	}
	if got := mustEval(t, m, "open").String(); got != "public" {
		t.Errorf("open = %q, want public", got)
	}
}

func TestRemapPropertiesEager(t *testing.T) {
	instr := &countingInstr{}
	_, _, m := newTestMembrane(t, &Options{Instrumentation: instr})

	err := m.RemapProperties(m.SandboxRoot(), DescriptorMap{
		"foo": DataDescriptor(42),
		"bar": DataDescriptor("baz"),
	})
	if err != nil {
		t.Fatalf("RemapProperties() error = %v", err)
	}

	if got := mustEval(t, m, "foo").ToInteger(); got != 42 {
		t.Errorf("foo = %d, want 42", got)
	}
	if got := mustEval(t, m, "bar").String(); got != "baz" {
		t.Errorf("bar = %q, want baz", got)
	}
	if instr.bridged != 2 {
		t.Errorf("bridged keys = %d, want 2", instr.bridged)
	}
	if instr.materialized != 0 {
		t.Errorf("materializations = %d, want 0 for eager bridging", instr.materialized)
	}
}

func TestLinkPrototypePath(t *testing.T) {
	hostVM, sandboxVM, m := newTestMembrane(t, nil)

	// Give both roots the same one-level prototype shape.
	for _, vm := range []*goja.Runtime{hostVM, sandboxVM} {
		proto := vm.NewObject()
		if err := vm.GlobalObject().SetPrototype(proto); err != nil {
			t.Fatalf("SetPrototype() error = %v", err)
		}
	}

	if err := m.Link("__proto__"); err != nil {
		t.Fatalf("Link(__proto__) error = %v", err)
	}

	hostProto := hostVM.GlobalObject().Prototype()
	got := m.toSandbox(hostProto)
	if got != goja.Value(sandboxVM.GlobalObject().Prototype()) {
		t.Error("linked prototype did not substitute for the host prototype")
	}
}

func TestLinkMissingPathFails(t *testing.T) {
	_, _, m := newTestMembrane(t, nil)
	if err := m.Link("definitelyMissing"); err == nil {
		t.Error("Link() on a missing path succeeded")
	}
}

func TestEvaluateTimeout(t *testing.T) {
	_, _, m := newTestMembrane(t, nil)

	_, err := m.Evaluate(context.Background(), "for(;;){}", 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestEvaluateAfterTimeout(t *testing.T) {
	_, _, m := newTestMembrane(t, nil)

	if _, err := m.Evaluate(context.Background(), "for(;;){}", 100*time.Millisecond); err == nil {
		t.Fatal("expected timeout error, got nil")
	}

	// A timed-out run must not leave a stale interrupt behind.
	v, err := m.Evaluate(context.Background(), "1 + 1", time.Second)
	if err != nil {
		t.Fatalf("evaluation after timeout failed: %v", err)
	}
	if v.ToInteger() != 2 {
		t.Fatalf("expected 2, got %v", v)
	}
}

func TestEvaluateContextCancel(t *testing.T) {
	_, _, m := newTestMembrane(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := m.Evaluate(ctx, "for(;;){}", time.Minute)
	if err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
}
