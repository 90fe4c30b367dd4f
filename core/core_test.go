package lisp

import (
	"errors"
	"net"
	"sort"
	"strings"
	"testing"
)

// memStore is an in-memory Snapshotter.
type memStore struct {
	images map[string][]Binding
}

func (m *memStore) Save(name string, bs []Binding) error {
	m.images[name] = append([]Binding(nil), bs...)
	return nil
}

func (m *memStore) Load(name string) ([]Binding, error) {
	bs, ok := m.images[name]
	if !ok {
		return nil, errors.New("image not found")
	}
	return bs, nil
}

func (m *memStore) List() ([]string, error) {
	var names []string
	for n := range m.images {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) Drop(name string) error {
	delete(m.images, name)
	return nil
}

// dialCore starts a core on one end of a pipe and returns the other.
func dialCore(t *testing.T, store Snapshotter) net.Conn {
	t.Helper()
	c := NewCore(NewInterpreter(Config{}), store)
	c.Start()
	client, server := net.Pipe()
	go c.ServeConn(server)
	t.Cleanup(func() { client.Close() })
	return client
}

func roundTrip(t *testing.T, conn net.Conn, msg map[string]any) map[string]any {
	t.Helper()
	msg["id"] = NextID()
	if err := WriteMsg(conn, msg); err != nil {
		t.Fatal(err)
	}
	resp, err := ReadMsg(conn)
	if err != nil {
		t.Fatal(err)
	}
	if resp["id"] != msg["id"] {
		t.Fatalf("response id %v does not match request id %v", resp["id"], msg["id"])
	}
	return resp
}

func expectOK(t *testing.T, resp map[string]any) {
	t.Helper()
	if ok, _ := resp["ok"].(bool); !ok {
		t.Fatalf("expected ok, got error %v", resp["error"])
	}
}

func TestCoreEval(t *testing.T) {
	conn := dialCore(t, nil)

	resp := roundTrip(t, conn, map[string]any{"op": "eval", "expr": "(print 'hello) (list 1 'a)"})
	expectOK(t, resp)
	if resp["text"] != "(1 a)" {
		t.Fatalf("text = %v", resp["text"])
	}
	if resp["output"] != "hello\n" {
		t.Fatalf("output = %q", resp["output"])
	}
	value, _ := resp["value"].([]any)
	if len(value) != 2 || value[0] != 1.0 || value[1] != "a" {
		t.Fatalf("value = %v", resp["value"])
	}
}

func TestCoreEvalError(t *testing.T) {
	conn := dialCore(t, nil)

	resp := roundTrip(t, conn, map[string]any{"op": "eval", "expr": "(print 1) (undefined)"})
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatal("expected failure")
	}
	if resp["error"] != "cannot apply undefined" {
		t.Fatalf("error = %v", resp["error"])
	}
	if resp["output"] != "1\n" {
		t.Fatalf("output before the error should be kept, got %q", resp["output"])
	}

	resp = roundTrip(t, conn, map[string]any{"op": "eval"})
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatal("expected failure for missing expr")
	}
}

func TestCoreAlistAndReset(t *testing.T) {
	conn := dialCore(t, nil)

	expectOK(t, roundTrip(t, conn, map[string]any{"op": "eval", "expr": "(setq x 1) (def y '(a))"}))
	resp := roundTrip(t, conn, map[string]any{"op": "alist"})
	expectOK(t, resp)
	list, _ := resp["value"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 bindings, got %v", resp["value"])
	}
	first := list[0].(map[string]any)
	if first["name"] != "y" || first["value"] != "'(a)" {
		t.Fatalf("unexpected first binding %v", first)
	}

	expectOK(t, roundTrip(t, conn, map[string]any{"op": "reset"}))
	resp = roundTrip(t, conn, map[string]any{"op": "alist"})
	if list, _ := resp["value"].([]any); len(list) != 0 {
		t.Fatalf("expected empty alist after reset, got %v", resp["value"])
	}
}

func TestCoreDebugTraces(t *testing.T) {
	conn := dialCore(t, nil)

	expectOK(t, roundTrip(t, conn, map[string]any{"op": "debug", "on": true}))
	expectOK(t, roundTrip(t, conn, map[string]any{"op": "eval", "expr": "(+ 1 2)"}))

	resp := roundTrip(t, conn, map[string]any{"op": "traces", "n": 1})
	expectOK(t, resp)
	traces, _ := resp["value"].([]any)
	if len(traces) != 1 {
		t.Fatalf("expected 1 trace, got %v", resp["value"])
	}
	tr := traces[0].(map[string]any)
	if tr["entry"] != "(+ 1 2)" || tr["result"] != "3" {
		t.Fatalf("unexpected trace %v", tr)
	}
	if events, _ := tr["events"].([]any); len(events) == 0 {
		t.Fatal("expected recorded events")
	}

	resp = roundTrip(t, conn, map[string]any{"op": "traces", "n": "two"})
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatal("expected failure for non-numeric n")
	}
}

func TestCoreSnapshots(t *testing.T) {
	conn := dialCore(t, &memStore{images: map[string][]Binding{}})

	expectOK(t, roundTrip(t, conn, map[string]any{"op": "eval", "expr": "(defun sq (x) (* x x))"}))
	expectOK(t, roundTrip(t, conn, map[string]any{"op": "save", "name": "base"}))
	expectOK(t, roundTrip(t, conn, map[string]any{"op": "reset"}))

	resp := roundTrip(t, conn, map[string]any{"op": "images"})
	expectOK(t, resp)
	if names, _ := resp["value"].([]any); len(names) != 1 || names[0] != "base" {
		t.Fatalf("images = %v", resp["value"])
	}

	expectOK(t, roundTrip(t, conn, map[string]any{"op": "load", "name": "base"}))
	resp = roundTrip(t, conn, map[string]any{"op": "eval", "expr": "(sq 6)"})
	expectOK(t, resp)
	if resp["text"] != "36" {
		t.Fatalf("text = %v", resp["text"])
	}

	resp = roundTrip(t, conn, map[string]any{"op": "load", "name": "missing"})
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatal("expected failure for a missing image")
	}
	resp = roundTrip(t, conn, map[string]any{"op": "save"})
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatal("expected failure for a missing name")
	}
}

func TestCoreWithoutStore(t *testing.T) {
	conn := dialCore(t, nil)

	resp := roundTrip(t, conn, map[string]any{"op": "save", "name": "x"})
	errMsg, _ := resp["error"].(string)
	if !strings.Contains(errMsg, "no snapshot store configured") {
		t.Fatalf("error = %q", errMsg)
	}
}

func TestCoreManualAndUnknownOp(t *testing.T) {
	conn := dialCore(t, nil)

	resp := roundTrip(t, conn, map[string]any{})
	expectOK(t, resp)
	manual := resp["value"].(map[string]any)
	ops := manual["ops"].(map[string]any)
	if _, ok := ops["eval"]; !ok {
		t.Fatalf("manual lacks eval: %v", ops)
	}

	resp = roundTrip(t, conn, map[string]any{"op": "frobnicate"})
	if resp["error"] != "unknown op: frobnicate" {
		t.Fatalf("error = %v", resp["error"])
	}
}
