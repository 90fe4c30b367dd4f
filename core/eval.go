package lisp

import (
	"fmt"
	"io"
)

// Builtin is a primitive implemented in Go, called with evaluated arguments.
type Builtin func(args []Sexpr) (Sexpr, error)

// DefaultMaxDepth is the nesting ceiling used when none is configured.
const DefaultMaxDepth = 10000

// Evaluator evaluates expressions against a root environment. Root holds
// the top-level definitions; def, defun, setq and set replace it with a
// new Env value.
type Evaluator struct {
	Root     Env
	Builtins map[string]Builtin
	MaxDepth int       // <= 0 means DefaultMaxDepth
	Out      io.Writer // sink for print
	depth    int
	tr       *tracer // nil unless tracing
}

// NewEvaluator returns an evaluator with an empty root environment and the
// primitive library installed.
func NewEvaluator(out io.Writer) *Evaluator {
	e := &Evaluator{Out: out}
	e.Builtins = Primitives()
	e.Builtins["print"] = e.builtinPrint
	return e
}

func (e *Evaluator) enter() error {
	limit := e.MaxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	if e.depth >= limit {
		return &DepthError{Limit: limit}
	}
	e.depth++
	return nil
}

func (e *Evaluator) leave() { e.depth-- }

// Eval evaluates exp in env.
func (e *Evaluator) Eval(exp Sexpr, env Env) (Sexpr, error) {
	if err := e.enter(); err != nil {
		return Sexpr{}, err
	}
	defer e.leave()
	if e.tr != nil {
		e.tr.eval(e.depth, exp, env)
	}

	switch exp.Kind {
	case SxNumber:
		return exp, nil
	case SxSymbol:
		switch exp.Sym {
		case "t":
			return exp, nil
		case "nil":
			return Nil(), nil
		case "alist":
			return e.Root.Sexpr(), nil
		}
		if v, ok := env.Lookup(exp.Sym); ok {
			return v, nil
		}
		// env may predate globals created during this evaluation
		return e.Root.Resolve(exp.Sym), nil
	case SxList:
		if len(exp.Items) == 0 {
			return Nil(), nil
		}
		return e.evalList(exp, env)
	default:
		return Sexpr{}, fmt.Errorf("unknown expression kind: %d", exp.Kind)
	}
}

func (e *Evaluator) evalList(exp Sexpr, env Env) (Sexpr, error) {
	head := exp.Items[0]

	// Special forms
	if head.Kind == SxSymbol {
		switch head.Sym {
		case "quote":
			return e.evalQuote(exp)
		case "list":
			return e.evalListForm(exp, env)
		case "append":
			return e.evalAppend(exp, env)
		case "setq":
			return e.evalSetq(exp, env, false)
		case "set":
			return e.evalSetq(exp, env, true)
		case "def":
			return e.evalDef(exp)
		case "defun":
			return e.evalDefun(exp)
		case "cond":
			return e.evalCond(exp, env)
		}
	}

	args, err := e.evalArgs(exp.Items[1:], env)
	if err != nil {
		return Sexpr{}, err
	}
	return e.Apply(head, args, env)
}

// evalArgs evaluates each expression left to right.
func (e *Evaluator) evalArgs(exprs []Sexpr, env Env) ([]Sexpr, error) {
	out := make([]Sexpr, len(exprs))
	for i, x := range exprs {
		v, err := e.Eval(x, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalQuote: (quote x) returns x unevaluated.
func (e *Evaluator) evalQuote(exp Sexpr) (Sexpr, error) {
	if len(exp.Items) != 2 {
		return Sexpr{}, argErrorf("quote", "expected 1 arg, got %d", len(exp.Items)-1)
	}
	return exp.Items[1], nil
}

// evalListForm: (list a b ...) evaluates each element.
func (e *Evaluator) evalListForm(exp Sexpr, env Env) (Sexpr, error) {
	items, err := e.evalArgs(exp.Items[1:], env)
	if err != nil {
		return Sexpr{}, err
	}
	return ListVal(items), nil
}

// evalAppend: (append l1 l2 ...) concatenates the evaluated lists.
func (e *Evaluator) evalAppend(exp Sexpr, env Env) (Sexpr, error) {
	parts, err := e.evalArgs(exp.Items[1:], env)
	if err != nil {
		return Sexpr{}, err
	}
	var out []Sexpr
	for _, p := range parts {
		if p.Kind != SxList {
			return Sexpr{}, argErrorf("append", "expected List, got %s", p.String())
		}
		out = append(out, p.Items...)
	}
	return ListVal(out), nil
}

// evalSetq: (setq n1 v1 n2 v2 ...). With evalNames set this is (set ...),
// where each name position is evaluated first and must yield a symbol.
func (e *Evaluator) evalSetq(exp Sexpr, env Env, evalNames bool) (Sexpr, error) {
	form := "setq"
	if evalNames {
		form = "set"
	}
	rest := exp.Items[1:]
	if len(rest)%2 != 0 {
		return Sexpr{}, argErrorf(form, "expected name/value pairs, got %d args", len(rest))
	}
	result := Nil()
	for i := 0; i < len(rest); i += 2 {
		target := rest[i]
		if evalNames {
			var err error
			if target, err = e.Eval(target, env); err != nil {
				return Sexpr{}, err
			}
		}
		if target.Kind != SxSymbol {
			return Sexpr{}, argErrorf(form, "name must be a Symbol, got %s", target.String())
		}
		if target.Sym == "t" || target.Sym == "nil" {
			return Sexpr{}, argErrorf(form, "cannot assign %s", target.Sym)
		}
		val, err := e.Eval(rest[i+1], env)
		if err != nil {
			return Sexpr{}, err
		}
		env = e.assign(target.Sym, val, env)
		result = val
	}
	return result, nil
}

// assign applies the global update rule against env: the oldest binding of
// name visible from env is overwritten in place. Otherwise the root is
// searched, since it may have grown since env was built, and only a name
// bound nowhere gets a new root binding. The returned env holds the cell.
func (e *Evaluator) assign(name string, val Sexpr, env Env) Env {
	if env.Same(e.Root) {
		e.Root, _, _ = e.Root.UpdateOldest(name, val)
		return e.Root
	}
	if _, _, found := env.UpdateOldest(name, val); found {
		return env
	}
	root, b, found := e.Root.UpdateOldest(name, val)
	if !found {
		e.Root = root
	}
	return env.prepend(b)
}

// evalDef: (def name expr) binds expr unevaluated.
func (e *Evaluator) evalDef(exp Sexpr) (Sexpr, error) {
	if len(exp.Items) != 3 {
		return Sexpr{}, argErrorf("def", "expected (def name expr)")
	}
	name := exp.Items[1]
	if name.Kind != SxSymbol {
		return Sexpr{}, argErrorf("def", "name must be a Symbol, got %s", name.String())
	}
	e.Root = e.Root.Define(name.Sym, exp.Items[2])
	return name, nil
}

// evalDefun: (defun name (params...) body...) binds (lambda params body...).
func (e *Evaluator) evalDefun(exp Sexpr) (Sexpr, error) {
	if len(exp.Items) < 3 {
		return Sexpr{}, argErrorf("defun", "expected (defun name (params...) body...)")
	}
	name := exp.Items[1]
	if name.Kind != SxSymbol {
		return Sexpr{}, argErrorf("defun", "name must be a Symbol, got %s", name.String())
	}
	if exp.Items[2].Kind != SxList {
		return Sexpr{}, argErrorf("defun", "params must be a List, got %s", exp.Items[2].String())
	}
	lambda := make([]Sexpr, 0, len(exp.Items)-1)
	lambda = append(lambda, SymbolVal("lambda"))
	lambda = append(lambda, exp.Items[2:]...)
	e.Root = e.Root.Define(name.Sym, ListVal(lambda))
	return name, nil
}

// evalCond: (cond (p1 c1) (p2 c2) ...) evaluates the consequent of the first truthy
// predicate, or the empty list.
func (e *Evaluator) evalCond(exp Sexpr, env Env) (Sexpr, error) {
	for _, clause := range exp.Items[1:] {
		if clause.Kind != SxList || len(clause.Items) != 2 {
			return Sexpr{}, argErrorf("cond", "clause must be (predicate consequent), got %s", clause.String())
		}
		test, err := e.Eval(clause.Items[0], env)
		if err != nil {
			return Sexpr{}, err
		}
		if test.Truthy() {
			return e.Eval(clause.Items[1], env)
		}
	}
	return Nil(), nil
}
