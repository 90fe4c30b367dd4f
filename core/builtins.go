package lisp

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Primitives returns the fixed primitive table. print and eval need the
// evaluator and are wired by NewEvaluator and Apply.
func Primitives() map[string]Builtin {
	return map[string]Builtin{
		"atom": builtinAtom,
		"car":  builtinCar,
		"cdr":  builtinCdr,
		"cons": builtinCons,
		"eq":   builtinEq,
		"not":  builtinNot,
		// Arithmetic
		"+": builtinAdd,
		"-": builtinSub,
		"*": builtinMul,
		"/": builtinDiv,
		// Comparison
		"<":  compare("<", func(a, b float64) bool { return a < b }),
		"<=": compare("<=", func(a, b float64) bool { return a <= b }),
		">":  compare(">", func(a, b float64) bool { return a > b }),
		">=": compare(">=", func(a, b float64) bool { return a >= b }),
		// Transcendental
		"cos": unaryMath("cos", math.Cos),
		"sin": unaryMath("sin", math.Sin),
		"tan": unaryMath("tan", math.Tan),
	}
}

// PrimitiveNames lists every primitive, including eval and print.
func PrimitiveNames() []string {
	names := []string{"eval", "print"}
	for name := range Primitives() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SpecialForms lists the keywords eval handles itself.
func SpecialForms() []string {
	return []string{"quote", "list", "append", "setq", "set", "def", "defun", "cond"}
}

func arity(name string, args []Sexpr, n int) error {
	if len(args) != n {
		plural := "s"
		if n == 1 {
			plural = ""
		}
		return argErrorf(name, "expected %d arg%s, got %d", n, plural, len(args))
	}
	return nil
}

func numbers(name string, args []Sexpr) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		if a.Kind != SxNumber {
			return nil, argErrorf(name, "expected Number, got %s", a.String())
		}
		out[i] = a.Num
	}
	return out, nil
}

func builtinAtom(args []Sexpr) (Sexpr, error) {
	if err := arity("atom", args, 1); err != nil {
		return Sexpr{}, err
	}
	return Bool(args[0].Kind != SxList), nil
}

func builtinCar(args []Sexpr) (Sexpr, error) {
	if err := arity("car", args, 1); err != nil {
		return Sexpr{}, err
	}
	if args[0].Kind != SxList {
		return Sexpr{}, argErrorf("car", "expected List, got %s", args[0].String())
	}
	if len(args[0].Items) == 0 {
		return Nil(), nil
	}
	return args[0].Items[0], nil
}

func builtinCdr(args []Sexpr) (Sexpr, error) {
	if err := arity("cdr", args, 1); err != nil {
		return Sexpr{}, err
	}
	if args[0].Kind != SxList {
		return Sexpr{}, argErrorf("cdr", "expected List, got %s", args[0].String())
	}
	if len(args[0].Items) == 0 {
		return Nil(), nil
	}
	return ListVal(args[0].Items[1:]), nil
}

func builtinCons(args []Sexpr) (Sexpr, error) {
	if err := arity("cons", args, 2); err != nil {
		return Sexpr{}, err
	}
	tail := args[1]
	if tail.Kind != SxList {
		tail = ListVal([]Sexpr{tail})
	}
	items := make([]Sexpr, 0, len(tail.Items)+1)
	items = append(items, args[0])
	items = append(items, tail.Items...)
	return ListVal(items), nil
}

func builtinEq(args []Sexpr) (Sexpr, error) {
	if err := arity("eq", args, 2); err != nil {
		return Sexpr{}, err
	}
	return Bool(Equal(args[0], args[1])), nil
}

func builtinNot(args []Sexpr) (Sexpr, error) {
	if err := arity("not", args, 1); err != nil {
		return Sexpr{}, err
	}
	return Bool(args[0].IsNil()), nil
}

// --- Arithmetic ---

func builtinAdd(args []Sexpr) (Sexpr, error) {
	nums, err := numbers("+", args)
	if err != nil {
		return Sexpr{}, err
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return NumberVal(sum), nil
}

func builtinSub(args []Sexpr) (Sexpr, error) {
	nums, err := numbers("-", args)
	if err != nil {
		return Sexpr{}, err
	}
	switch len(nums) {
	case 0:
		return Sexpr{}, argErrorf("-", "expected at least 1 arg")
	case 1:
		return NumberVal(-nums[0]), nil
	}
	acc := nums[0]
	for _, n := range nums[1:] {
		acc -= n
	}
	return NumberVal(acc), nil
}

func builtinMul(args []Sexpr) (Sexpr, error) {
	nums, err := numbers("*", args)
	if err != nil {
		return Sexpr{}, err
	}
	prod := 1.0
	for _, n := range nums {
		prod *= n
	}
	return NumberVal(prod), nil
}

func builtinDiv(args []Sexpr) (Sexpr, error) {
	nums, err := numbers("/", args)
	if err != nil {
		return Sexpr{}, err
	}
	switch len(nums) {
	case 0:
		return Sexpr{}, argErrorf("/", "expected at least 1 arg")
	case 1:
		return NumberVal(1 / nums[0]), nil
	}
	acc := nums[0]
	for _, n := range nums[1:] {
		acc /= n
	}
	return NumberVal(acc), nil
}

// --- Comparison ---

func compare(name string, cmp func(a, b float64) bool) Builtin {
	return func(args []Sexpr) (Sexpr, error) {
		if err := arity(name, args, 2); err != nil {
			return Sexpr{}, err
		}
		nums, err := numbers(name, args)
		if err != nil {
			return Sexpr{}, err
		}
		return Bool(cmp(nums[0], nums[1])), nil
	}
}

func unaryMath(name string, f func(float64) float64) Builtin {
	return func(args []Sexpr) (Sexpr, error) {
		if err := arity(name, args, 1); err != nil {
			return Sexpr{}, err
		}
		nums, err := numbers(name, args)
		if err != nil {
			return Sexpr{}, err
		}
		return NumberVal(f(nums[0])), nil
	}
}

// builtinPrint: (print a b ...) writes the args space-separated on one
// line and returns the last.
func (e *Evaluator) builtinPrint(args []Sexpr) (Sexpr, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	if e.Out != nil {
		if _, err := fmt.Fprintln(e.Out, strings.Join(parts, " ")); err != nil {
			return Sexpr{}, fmt.Errorf("print: %w", err)
		}
	}
	if len(args) == 0 {
		return Nil(), nil
	}
	return args[len(args)-1], nil
}
