package lisp

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds interpreter settings.
type Config struct {
	MaxDepth  int       // nesting ceiling for eval/apply
	MaxTraces int       // completed traces kept in memory
	Out       io.Writer // print sink; nil discards
}

const defaultMaxTraces = 1000

// ConfigFromEnv reads PRIMELISP_MAX_DEPTH and PRIMELISP_MAX_TRACES,
// falling back to defaults. Out is os.Stdout.
func ConfigFromEnv() Config {
	return Config{
		MaxDepth:  envInt("PRIMELISP_MAX_DEPTH", DefaultMaxDepth),
		MaxTraces: envInt("PRIMELISP_MAX_TRACES", defaultMaxTraces),
		Out:       os.Stdout,
	}
}

// EnvOr returns the environment variable key, or fallback when unset.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(EnvOr(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Interpreter owns a root environment and serializes evaluation against
// it: each top-level Evaluate holds the lock for its whole duration.
type Interpreter struct {
	mu        sync.Mutex
	eval      *Evaluator
	traces    []Trace
	maxTraces int
	debugOn   bool
	debugOut  io.Writer
}

func NewInterpreter(cfg Config) *Interpreter {
	ev := NewEvaluator(cfg.Out)
	ev.MaxDepth = cfg.MaxDepth
	maxTraces := cfg.MaxTraces
	if maxTraces <= 0 {
		maxTraces = defaultMaxTraces
	}
	return &Interpreter{eval: ev, maxTraces: maxTraces}
}

// Evaluate evaluates expr against the root environment.
func (in *Interpreter) Evaluate(expr Sexpr) (Sexpr, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.evaluate(expr)
}

func (in *Interpreter) evaluate(expr Sexpr) (Sexpr, error) {
	trace := &Trace{
		Entry:     expr.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if in.debugOn {
		in.eval.tr = &tracer{w: in.debugOut, trace: trace}
	}
	in.eval.depth = 0
	val, err := in.eval.Eval(expr, in.eval.Root)
	in.eval.tr = nil

	if err != nil {
		trace.Error = err.Error()
	} else {
		trace.Result = val
	}
	in.appendTrace(trace)
	return val, err
}

// EvalString parses every expression in src and evaluates them in order,
// returning the last result. It stops at the first error.
func (in *Interpreter) EvalString(src string) (Sexpr, error) {
	exprs, err := ParseAll(src)
	if err != nil {
		return Sexpr{}, err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	result := Nil()
	for _, x := range exprs {
		if result, err = in.evaluate(x); err != nil {
			return Sexpr{}, err
		}
	}
	return result, nil
}

// Root returns the current root environment.
func (in *Interpreter) Root() Env {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.eval.Root
}

// Bindings copies the root environment, front to back.
func (in *Interpreter) Bindings() []Binding {
	return in.Root().Bindings()
}

// Restore replaces the root environment with bs.
func (in *Interpreter) Restore(bs []Binding) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.eval.Root = EnvFromBindings(bs)
}

// Reset empties the root environment and drops recorded traces.
func (in *Interpreter) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.eval.Root = Env{}
	in.traces = nil
}

// SetOutput redirects print.
func (in *Interpreter) SetOutput(w io.Writer) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.eval.Out = w
}

// SetDebug turns eval/apply tracing on or off. Events are recorded in the
// trace history; when w is non-nil they are also written to it as they
// happen.
func (in *Interpreter) SetDebug(on bool, w io.Writer) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.debugOn = on
	in.debugOut = w
}

func (in *Interpreter) Debugging() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.debugOn
}

// Traces returns up to the last n traces, oldest first. n <= 0 means all.
func (in *Interpreter) Traces(n int) []Trace {
	in.mu.Lock()
	defer in.mu.Unlock()
	if n <= 0 || n > len(in.traces) {
		n = len(in.traces)
	}
	out := make([]Trace, n)
	copy(out, in.traces[len(in.traces)-n:])
	return out
}

// appendTrace adds a trace and enforces the maxTraces cap.
func (in *Interpreter) appendTrace(t *Trace) {
	in.traces = append(in.traces, *t)
	if len(in.traces) > in.maxTraces {
		excess := len(in.traces) - in.maxTraces
		in.traces = in.traces[excess:]
	}
}

// Describe returns a one-line summary of the interpreter state.
func (in *Interpreter) Describe() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return fmt.Sprintf("%d bindings, %d traces, debug=%v", in.eval.Root.Len(), len(in.traces), in.debugOn)
}
