package lisp

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net"
	"os"
)

// Snapshotter persists named images of a root environment.
type Snapshotter interface {
	Save(name string, bindings []Binding) error
	Load(name string) ([]Binding, error)
	List() ([]string, error)
	Drop(name string) error
}

// Core serves one Interpreter over a unix socket. All requests funnel
// through a single actor goroutine, which is the only code touching the
// interpreter once the core is running.
type Core struct {
	interp   *Interpreter
	store    Snapshotter // nil disables save/load
	requests chan coreRequest
	listener net.Listener
	out      bytes.Buffer // print output of the request in flight
}

type coreRequest struct {
	msg      map[string]any
	response chan map[string]any
}

// NewCore wraps interp. store may be nil.
func NewCore(interp *Interpreter, store Snapshotter) *Core {
	c := &Core{
		interp:   interp,
		store:    store,
		requests: make(chan coreRequest, 64),
	}
	interp.SetOutput(&c.out)
	return c
}

// Listen opens the unix socket, removing a stale one first.
func (c *Core) Listen(sockPath string) error {
	os.Remove(sockPath)
	l, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	c.listener = l
	return nil
}

// Start launches the actor goroutine.
func (c *Core) Start() {
	go c.actorLoop()
}

// Run starts the actor and accepts connections. Blocks until shutdown.
func (c *Core) Run() {
	c.Start()
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		go c.ServeConn(conn)
	}
}

// Shutdown stops accepting connections and stops the actor.
func (c *Core) Shutdown() {
	if c.listener != nil {
		c.listener.Close()
	}
	close(c.requests)
}

// actorLoop is the single goroutine that owns interpreter state.
func (c *Core) actorLoop() {
	for req := range c.requests {
		req.response <- c.handleRequest(req.msg)
	}
}

// sendToActor sends a request to the actor and waits for the response.
func (c *Core) sendToActor(msg map[string]any) map[string]any {
	resp := make(chan map[string]any, 1)
	c.requests <- coreRequest{msg: msg, response: resp}
	return <-resp
}

// ServeConn answers framed requests on conn until it closes.
func (c *Core) ServeConn(conn net.Conn) {
	defer conn.Close()

	for {
		msg, err := ReadMsg(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("read client message: %v", err)
			}
			return
		}

		resp := c.sendToActor(msg)
		if err := WriteMsg(conn, resp); err != nil {
			log.Printf("write client response: %v", err)
			return
		}
	}
}

func (c *Core) handleRequest(msg map[string]any) map[string]any {
	id, _ := msg["id"].(string)

	op, _ := msg["op"].(string)
	switch op {
	case "":
		return c.manual(id)
	case "eval":
		return c.handleEval(id, msg)
	case "alist":
		return c.handleAlist(id)
	case "reset":
		c.interp.Reset()
		return map[string]any{"id": id, "ok": true, "value": "reset"}
	case "debug":
		on, _ := msg["on"].(bool)
		c.interp.SetDebug(on, nil)
		return map[string]any{"id": id, "ok": true, "value": on}
	case "status":
		return map[string]any{"id": id, "ok": true, "value": c.interp.Describe()}
	case "traces":
		return c.handleTraces(id, msg)
	case "save", "load", "images", "drop":
		return c.handleSnapshot(id, op, msg)
	default:
		return errorResponse(id, fmt.Sprintf("unknown op: %s", op))
	}
}

func (c *Core) manual(id string) map[string]any {
	return map[string]any{
		"id": id,
		"ok": true,
		"value": map[string]any{
			"name":    "primelisp",
			"version": "1.0.0",
			"ops": map[string]any{
				"eval":   "Evaluate every expression in expr (string); returns the last value. Params: expr",
				"alist":  "List the root environment bindings, newest first.",
				"reset":  "Empty the root environment and drop traces.",
				"debug":  "Record eval/apply events in traces. Params: on (bool)",
				"status": "Summarize the interpreter state.",
				"traces": "Return the last N evaluation traces. Params: n (number, optional)",
				"save":   "Save the root environment as a named image. Params: name",
				"load":   "Replace the root environment with a named image. Params: name",
				"images": "List saved images.",
				"drop":   "Delete a saved image. Params: name",
			},
			"primitives": toAnySlice(PrimitiveNames()),
			"forms":      toAnySlice(SpecialForms()),
		},
	}
}

func (c *Core) handleEval(id string, msg map[string]any) map[string]any {
	expr, ok := msg["expr"].(string)
	if !ok {
		return errorResponse(id, "eval: missing 'expr' string")
	}
	c.out.Reset()
	val, err := c.interp.EvalString(expr)
	output := c.out.String()
	c.out.Reset()
	if err != nil {
		resp := errorResponse(id, err.Error())
		resp["output"] = output
		return resp
	}
	return map[string]any{
		"id":     id,
		"ok":     true,
		"value":  ValueToGo(val),
		"text":   val.String(),
		"output": output,
	}
}

func (c *Core) handleAlist(id string) map[string]any {
	bs := c.interp.Bindings()
	out := make([]any, len(bs))
	for i, b := range bs {
		out[i] = map[string]any{"name": b.Name, "value": b.Value.String()}
	}
	return map[string]any{"id": id, "ok": true, "value": out}
}

func (c *Core) handleTraces(id string, msg map[string]any) map[string]any {
	n := 0
	if raw, ok := msg["n"]; ok {
		f, ok := raw.(float64)
		if !ok {
			return errorResponse(id, "traces: 'n' must be a number")
		}
		n = int(f)
	}
	traces := c.interp.Traces(n)
	out := make([]any, len(traces))
	for i := range traces {
		out[i] = traces[i].ToGo()
	}
	return map[string]any{"id": id, "ok": true, "value": out}
}

func (c *Core) handleSnapshot(id, op string, msg map[string]any) map[string]any {
	if c.store == nil {
		return errorResponse(id, op+": no snapshot store configured")
	}
	if op == "images" {
		names, err := c.store.List()
		if err != nil {
			return errorResponse(id, err.Error())
		}
		return map[string]any{"id": id, "ok": true, "value": toAnySlice(names)}
	}

	name, ok := msg["name"].(string)
	if !ok || name == "" {
		return errorResponse(id, op+": missing 'name' string")
	}
	switch op {
	case "save":
		if err := c.store.Save(name, c.interp.Bindings()); err != nil {
			return errorResponse(id, err.Error())
		}
	case "load":
		bs, err := c.store.Load(name)
		if err != nil {
			return errorResponse(id, err.Error())
		}
		c.interp.Restore(bs)
	case "drop":
		if err := c.store.Drop(name); err != nil {
			return errorResponse(id, err.Error())
		}
	}
	return map[string]any{"id": id, "ok": true, "value": name}
}

func errorResponse(id, errMsg string) map[string]any {
	return map[string]any{"id": id, "ok": false, "error": errMsg}
}

func toAnySlice(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
