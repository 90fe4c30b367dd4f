package lisp

// Apply calls fn with already evaluated args.
//
// Lambdas are scoped dynamically: parameters are bound on top of env, the
// caller's environment, not an environment captured at definition time.
func (e *Evaluator) Apply(fn Sexpr, args []Sexpr, env Env) (Sexpr, error) {
	if err := e.enter(); err != nil {
		return Sexpr{}, err
	}
	defer e.leave()
	if e.tr != nil {
		e.tr.apply(e.depth, fn, args, env)
	}

	switch fn.Kind {
	case SxSymbol:
		// eval is the one primitive that needs the caller's environment.
		if fn.Sym == "eval" {
			if len(args) != 1 {
				return Sexpr{}, argErrorf("eval", "expected 1 arg, got %d", len(args))
			}
			return e.Eval(args[0], env)
		}
		if b, ok := e.Builtins[fn.Sym]; ok {
			return b(args)
		}
		val, err := e.Eval(fn, env)
		if err != nil {
			return Sexpr{}, err
		}
		if val.IsNil() || Equal(val, fn) {
			return Sexpr{}, &ApplyError{Fn: fn}
		}
		return e.Apply(val, args, env)
	case SxList:
		if len(fn.Items) >= 2 && fn.Items[0].Is("lambda") {
			return e.applyLambda(fn, args, env)
		}
	}
	return Sexpr{}, &ApplyError{Fn: fn}
}

// applyLambda: ((lambda (params...) body...) args...). Body expressions run
// in order; the value is the last one's.
func (e *Evaluator) applyLambda(fn Sexpr, args []Sexpr, env Env) (Sexpr, error) {
	params := fn.Items[1]
	if params.Kind != SxList {
		return Sexpr{}, argErrorf("lambda", "params must be a List, got %s", params.String())
	}
	local, err := Bind(params.Items, args, env)
	if err != nil {
		return Sexpr{}, err
	}
	result := Nil()
	for _, body := range fn.Items[2:] {
		if result, err = e.Eval(body, local); err != nil {
			return Sexpr{}, err
		}
	}
	return result, nil
}
