package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lisp "github.com/adumont/PrimeLISP/core"
)

// maxBodySize caps an /eval request body.
const maxBodySize = 1 << 20

// gateway forwards HTTP requests to a primelisp core over one socket
// connection. Requests are serialized on that connection. After any write
// or read failure the connection is dropped and redialed on the next
// request, since a late response would otherwise answer the wrong request.
type gateway struct {
	dial    func() (net.Conn, error)
	conn    net.Conn // nil until dialed
	mu      sync.Mutex
	timeout time.Duration
}

func newGateway(dial func() (net.Conn, error), timeout time.Duration) *gateway {
	return &gateway{dial: dial, timeout: timeout}
}

// connect dials the core if there is no live connection. Callers hold mu.
func (g *gateway) connect() error {
	if g.conn != nil {
		return nil
	}
	conn, err := g.dial()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	g.conn = conn
	return nil
}

func (g *gateway) open() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connect()
}

// drop closes the connection. Callers hold mu.
func (g *gateway) drop() {
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
}

func (g *gateway) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drop()
}

// send writes req and waits for the response carrying the same id.
func (g *gateway) send(req map[string]any) (map[string]any, error) {
	id := lisp.NextID()
	req["id"] = id
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.connect(); err != nil {
		return nil, err
	}
	if g.timeout > 0 {
		g.conn.SetDeadline(time.Now().Add(g.timeout))
		defer func() {
			if g.conn != nil {
				g.conn.SetDeadline(time.Time{})
			}
		}()
	}
	if err := lisp.WriteMsg(g.conn, req); err != nil {
		g.drop()
		return nil, fmt.Errorf("write: %w", err)
	}
	for {
		resp, err := lisp.ReadMsg(g.conn)
		if err != nil {
			g.drop()
			return nil, fmt.Errorf("read: %w", err)
		}
		if resp["id"] == id {
			return resp, nil
		}
		log.Printf("skipping stale response %v", resp["id"])
	}
}

func (g *gateway) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", g.handleOp(""))
	mux.HandleFunc("POST /eval", g.handleEval)
	mux.HandleFunc("GET /alist", g.handleOp("alist"))
	mux.HandleFunc("GET /status", g.handleOp("status"))
	mux.HandleFunc("GET /images", g.handleOp("images"))
	mux.HandleFunc("POST /reset", g.handleOp("reset"))
	mux.HandleFunc("GET /traces", g.handleTraces)
	mux.HandleFunc("POST /images/{name}", g.handleImage("save"))
	mux.HandleFunc("PUT /images/{name}", g.handleImage("load"))
	mux.HandleFunc("DELETE /images/{name}", g.handleImage("drop"))
	return mux
}

// handleEval evaluates the request body as PrimeLISP source.
func (g *gateway) handleEval(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	g.forward(w, map[string]any{"op": "eval", "expr": string(body)})
}

func (g *gateway) handleOp(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.forward(w, map[string]any{"op": op})
	}
}

func (g *gateway) handleTraces(w http.ResponseWriter, r *http.Request) {
	req := map[string]any{"op": "traces"}
	if q := r.URL.Query().Get("n"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		req["n"] = n
	}
	g.forward(w, req)
}

func (g *gateway) handleImage(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.forward(w, map[string]any{"op": op, "name": r.PathValue("name")})
	}
}

// forward relays req and writes the core's response as JSON. A failed
// operation is 422; an unreachable core is 502.
func (g *gateway) forward(w http.ResponseWriter, req map[string]any) {
	resp, err := g.send(req)
	if err != nil {
		log.Printf("core request %v: %v", req["op"], err)
		http.Error(w, "failed to reach core", http.StatusBadGateway)
		return
	}
	delete(resp, "id")

	status := http.StatusOK
	if ok, _ := resp["ok"].(bool); !ok {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("write response: %v", err)
	}
}
