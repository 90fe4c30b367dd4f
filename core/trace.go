package lisp

import (
	"fmt"
	"io"
	"strings"
)

// Trace captures one top-level evaluation: the entry expression, the
// eval/apply calls made under it when tracing is on, and the result or
// error.
type Trace struct {
	Entry     string       // printed form of the top-level expression
	Events    []TraceEvent // recorded only while debug tracing is on
	Result    Sexpr
	Error     string // non-empty on error
	Timestamp string // RFC 3339
}

// TraceEvent is a single eval or apply call.
type TraceEvent struct {
	Op    string // "eval" or "apply"
	Depth int
	Expr  Sexpr   // expression for eval, function for apply
	Args  []Sexpr // apply only
}

// ToGo converts a Trace for JSON encoding.
func (t *Trace) ToGo() map[string]any {
	events := make([]any, len(t.Events))
	for i, ev := range t.Events {
		m := map[string]any{"op": ev.Op, "depth": ev.Depth, "expr": ev.Expr.String()}
		if ev.Op == "apply" {
			m["args"] = ListVal(ev.Args).String()
		}
		events[i] = m
	}
	out := map[string]any{
		"entry":     t.Entry,
		"timestamp": t.Timestamp,
		"result":    t.Result.String(),
		"events":    events,
	}
	if t.Error != "" {
		out["error"] = t.Error
	}
	return out
}

// traceLineWidth truncates environment dump lines.
const traceLineWidth = 50

// WriteAlist dumps env one "(name value)" per line, truncating long lines.
func WriteAlist(w io.Writer, env Env) {
	fmt.Fprintln(w, "Alist")
	for _, b := range env.Bindings() {
		line := fmt.Sprintf("(%s %s)", b.Name, b.Value.String())
		if len(line) > traceLineWidth {
			line = line[:traceLineWidth] + "..."
		}
		fmt.Fprintln(w, line)
	}
}

// tracer receives eval/apply calls while debugging is on.
type tracer struct {
	w     io.Writer
	trace *Trace
}

func (t *tracer) eval(depth int, exp Sexpr, env Env) {
	if t.trace != nil {
		t.trace.Events = append(t.trace.Events, TraceEvent{Op: "eval", Depth: depth, Expr: exp})
	}
	if t.w != nil {
		fmt.Fprintf(t.w, "%s--Eval--- %s\n", indent(depth), exp.String())
		WriteAlist(t.w, env)
	}
}

func (t *tracer) apply(depth int, fn Sexpr, args []Sexpr, env Env) {
	if t.trace != nil {
		t.trace.Events = append(t.trace.Events, TraceEvent{Op: "apply", Depth: depth, Expr: fn, Args: args})
	}
	if t.w != nil {
		fmt.Fprintf(t.w, "%s--Apply-- %s  Args=%s\n", indent(depth), fn.String(), ListVal(args).String())
		WriteAlist(t.w, env)
	}
}

func indent(depth int) string {
	if depth > 20 {
		depth = 20
	}
	return strings.Repeat(" ", depth)
}
