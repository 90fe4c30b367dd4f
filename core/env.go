package lisp

// Binding pairs a name with its value. Binding cells are shared between
// every environment that contains them, which is what makes an in-place
// update visible to all of them.
type Binding struct {
	Name  string
	Value Sexpr
}

// Env is an ordered sequence of bindings, newest first. It is a persistent
// list: prepending returns a new Env and never disturbs existing holders.
// The zero Env is empty.
type Env struct {
	head *envCell
	size int
}

type envCell struct {
	b    *Binding
	next *envCell
}

func (e Env) Len() int { return e.size }

// Same reports whether both environments share the same front cell.
func (e Env) Same(o Env) bool { return e.head == o.head }

func (e Env) prepend(b *Binding) Env {
	return Env{head: &envCell{b: b, next: e.head}, size: e.size + 1}
}

// Define prepends a fresh binding.
func (e Env) Define(name string, value Sexpr) Env {
	return e.prepend(&Binding{Name: name, Value: value})
}

// Lookup scans from the front and returns the first binding of name.
func (e Env) Lookup(name string) (Sexpr, bool) {
	for c := e.head; c != nil; c = c.next {
		if c.b.Name == name {
			return c.b.Value, true
		}
	}
	return Sexpr{}, false
}

// Resolve is Lookup with the unbound-means-nil policy.
func (e Env) Resolve(name string) Sexpr {
	if v, ok := e.Lookup(name); ok {
		return v
	}
	return Nil()
}

// Bind prepends names[i] = values[i] in order, so the last name bound is
// nearest the front. Names must be symbols and the lengths must agree.
func Bind(names, values []Sexpr, env Env) (Env, error) {
	if len(names) != len(values) {
		return env, argErrorf("lambda", "expected %d args, got %d", len(names), len(values))
	}
	for i, n := range names {
		if n.Kind != SxSymbol {
			return env, argErrorf("lambda", "parameter must be a Symbol, got %s", n.String())
		}
		env = env.Define(n.Sym, values[i])
	}
	return env, nil
}

// UpdateOldest scans from the back (oldest binding) toward the front and
// overwrites the first binding of name in place. When there is none it
// prepends a new binding. The returned *Binding is the cell that now holds
// the value; found reports whether it already existed.
func (e Env) UpdateOldest(name string, value Sexpr) (Env, *Binding, bool) {
	var oldest *Binding
	for c := e.head; c != nil; c = c.next {
		if c.b.Name == name {
			oldest = c.b
		}
	}
	if oldest != nil {
		oldest.Value = value
		return e, oldest, true
	}
	b := &Binding{Name: name, Value: value}
	return e.prepend(b), b, false
}

// Bindings copies the bindings out, front to back.
func (e Env) Bindings() []Binding {
	out := make([]Binding, 0, e.size)
	for c := e.head; c != nil; c = c.next {
		out = append(out, *c.b)
	}
	return out
}

// EnvFromBindings rebuilds an environment whose front-to-back order matches
// bs.
func EnvFromBindings(bs []Binding) Env {
	var env Env
	for i := len(bs) - 1; i >= 0; i-- {
		env = env.Define(bs[i].Name, bs[i].Value)
	}
	return env
}

// Sexpr renders the environment as ((name value) ...), front to back.
func (e Env) Sexpr() Sexpr {
	items := make([]Sexpr, 0, e.size)
	for c := e.head; c != nil; c = c.next {
		items = append(items, ListVal([]Sexpr{SymbolVal(c.b.Name), c.b.Value}))
	}
	return ListVal(items)
}
