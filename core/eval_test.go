package lisp

import (
	"bytes"
	"errors"
	"testing"
)

func newTestInterp(out *bytes.Buffer) *Interpreter {
	return NewInterpreter(Config{Out: out, MaxDepth: 2000})
}

func mustParse(t *testing.T, input string) Sexpr {
	t.Helper()
	s, err := Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return s
}

// testEval evaluates input in a fresh interpreter and compares the result
// with the expression written in expected.
func testEval(t *testing.T, input, expected string) {
	t.Helper()
	testEvalIn(t, newTestInterp(&bytes.Buffer{}), input, expected)
}

func testEvalIn(t *testing.T, in *Interpreter, input, expected string) {
	t.Helper()
	val, err := in.EvalString(input)
	if err != nil {
		t.Fatalf("eval %q: %v", input, err)
	}
	want := mustParse(t, expected)
	if !Equal(val, want) {
		t.Fatalf("eval %q: expected %s, got %s", input, want.String(), val.String())
	}
}

func testEvalError(t *testing.T, input string) error {
	t.Helper()
	_, err := newTestInterp(&bytes.Buffer{}).EvalString(input)
	if err == nil {
		t.Fatalf("expected error for %q", input)
	}
	return err
}

// --- Self-evaluation ---

func TestEvalAtoms(t *testing.T) {
	testEval(t, "42", "42")
	testEval(t, "-2.5", "-2.5")
	testEval(t, "t", "t")
	testEval(t, "nil", "()")
	testEval(t, "()", "()")
}

func TestEvalUnboundIsNil(t *testing.T) {
	testEval(t, "undefined-thing", "()")
	testEval(t, "(list nobody 1)", "(() 1)")
}

// --- Arithmetic ---

func TestEvalArithmetic(t *testing.T) {
	testEval(t, "(+ 1 2 3)", "6")
	testEval(t, "(+)", "0")
	testEval(t, "(* )", "1")
	testEval(t, "(* 2 3 4)", "24")
	testEval(t, "(- 5)", "-5")
	testEval(t, "(- 10 1 2 3)", "4")
	testEval(t, "(/ 2)", "0.5")
	testEval(t, "(/ 8 2 2)", "2")
	testEval(t, "(+ 0.1 0.2)", "0.30000000000000004")
}

func TestEvalDivideByZeroIsIEEE(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	val, err := in.EvalString("(/ 1 0)")
	if err != nil {
		t.Fatal(err)
	}
	if val.Kind != SxNumber || val.String() != "+Inf" {
		t.Fatalf("expected +Inf, got %s", val.String())
	}
}

func TestEvalTranscendental(t *testing.T) {
	testEval(t, "(cos 0)", "1")
	testEval(t, "(sin 0)", "0")
	testEval(t, "(tan 0)", "0")
}

func TestEvalComparison(t *testing.T) {
	testEval(t, "(< 1 2)", "t")
	testEval(t, "(< 2 1)", "()")
	testEval(t, "(<= 2 2)", "t")
	testEval(t, "(> 3 2)", "t")
	testEval(t, "(>= 1 2)", "()")
}

// --- List primitives ---

func TestEvalListPrimitives(t *testing.T) {
	testEval(t, "(cons 1 '(2 3))", "(1 2 3)")
	testEval(t, "(cons 1 2)", "(1 2)")
	testEval(t, "(cons '(a) nil)", "((a))")
	testEval(t, "(car '(a b c))", "a")
	testEval(t, "(cdr '(a b c))", "(b c)")
	testEval(t, "(car nil)", "()")
	testEval(t, "(cdr nil)", "()")
	testEval(t, "(atom 'a)", "t")
	testEval(t, "(atom 3)", "t")
	testEval(t, "(atom '(a))", "()")
	testEval(t, "(atom nil)", "()")
	testEval(t, "(not nil)", "t")
	testEval(t, "(not 0)", "()")
}

func TestEvalEq(t *testing.T) {
	testEval(t, "(eq 1 1)", "t")
	testEval(t, "(eq 1 2)", "()")
	testEval(t, "(eq 'a 'a)", "t")
	testEval(t, "(eq '(1 (2)) '(1 (2)))", "t")
	testEval(t, "(eq nil '())", "t")
	testEval(t, "(eq 'a '(a))", "()")
}

// --- Special forms ---

func TestEvalQuote(t *testing.T) {
	testEval(t, "'(a b c)", "(a b c)")
	testEval(t, "(quote x)", "x")
	testEval(t, "''a", "(quote a)")
}

func TestEvalListAndAppend(t *testing.T) {
	testEval(t, "(list 1 (+ 1 1) 'c)", "(1 2 c)")
	testEval(t, "(list)", "()")
	testEval(t, "(append '(1 2) '(3) nil '(4))", "(1 2 3 4)")
	testEval(t, "(append)", "()")
}

func TestEvalCond(t *testing.T) {
	testEval(t, "(cond (nil 1) (t 2))", "2")
	testEval(t, "(cond ((eq 1 2) 1))", "()")
	testEval(t, "(cond (0 'zero-is-true))", "zero-is-true")
}

func TestEvalCondShortCircuit(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(cond (t 'first) ((setq hit 1) 'second))", "first")
	testEvalIn(t, in, "hit", "()")
	testEvalIn(t, in, "(cond (nil (setq hit 2)) (t 'ok))", "ok")
	testEvalIn(t, in, "hit", "()")
}

func TestEvalDefAndDefun(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(def five (+ 2 3))", "five")
	testEvalIn(t, in, "five", "(+ 2 3)")
	testEvalIn(t, in, "(def sq (lambda (x) (* x x)))", "sq")
	testEvalIn(t, in, "(sq 3)", "9")
	testEvalIn(t, in, "(defun add3 (a b c) (+ a b c))", "add3")
	testEvalIn(t, in, "add3", "(lambda (a b c) (+ a b c))")
	testEvalIn(t, in, "(add3 1 2 3)", "6")
}

func TestEvalFactorial(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(defun fact (x) (cond ((eq x 0) 1) (t (* x (fact (- x 1))))))", "fact")
	testEvalIn(t, in, "(fact 5)", "120")
	testEvalIn(t, in, "(fact 0)", "1")
}

func TestEvalSetq(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(setq a 1 b (+ a 1))", "2")
	testEvalIn(t, in, "(list a b)", "(1 2)")
	testEvalIn(t, in, "(setq a 10)", "10")
	testEvalIn(t, in, "a", "10")
	testEvalIn(t, in, "(setq)", "()")
}

func TestEvalSetqUpdatesInPlace(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(setq x 1)", "1")
	testEvalIn(t, in, "(setq x 2)", "2")
	if n := in.Root().Len(); n != 1 {
		t.Fatalf("expected 1 root binding after two setq, got %d", n)
	}
}

func TestEvalSet(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(set 'x 1)", "1")
	testEvalIn(t, in, "x", "1")
	testEvalIn(t, in, "(setq name 'y)", "y")
	testEvalIn(t, in, "(set name 5)", "5")
	testEvalIn(t, in, "y", "5")
}

// With x bound globally, setq inside a lambda that shadows x updates the
// oldest binding, the global one; the lambda keeps seeing its parameter.
func TestEvalSetqUpdatesOldestBinding(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(setq x 1)", "1")
	testEvalIn(t, in, "((lambda (x) (setq x 2) x) 5)", "5")
	testEvalIn(t, in, "x", "2")
}

func TestEvalSetqInsideLambdaCreatesGlobal(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(defun remember (v) (setq memo v))", "remember")
	testEvalIn(t, in, "(remember 7)", "7")
	testEvalIn(t, in, "memo", "7")
	testEvalIn(t, in, "(remember 8)", "8")
	testEvalIn(t, in, "memo", "8")
}

// A setq that runs after the root has grown within the same top-level
// expression must update the existing root binding, not add a second one.
func TestEvalSetqKeepsOneRootBinding(t *testing.T) {
	cases := []struct {
		name, program, want, root string
	}{
		{"sibling arguments", "(list (setq a 1) (setq a 2)) (setq a 3) a", "3", "((a 3))"},
		{"repeated calls", "(defun note (v) (setq last v)) (list (note 1) (note 2)) (setq last 3) last", "3", "((last 3) (note (lambda (v) (setq last v))))"},
		{"body forms", "((lambda (p) (setq k 1) (setq k 2)) 0) (setq k 9) k", "9", "((k 9))"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := newTestInterp(&bytes.Buffer{})
			testEvalIn(t, in, tc.program, tc.want)
			if got := in.Root().Sexpr().String(); got != tc.root {
				t.Fatalf("root = %s, want %s", got, tc.root)
			}
		})
	}
}

func TestEvalGlobalVisibleInSameBody(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "((lambda () (setq fresh 1) (+ fresh 1)))", "2")
	testEvalIn(t, in, "(list (setq b 4) b)", "(4 4)")
	testEvalIn(t, in, "(defun getb () b) ((lambda (b) (getb)) 7)", "7")
}

func TestEvalAlist(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "alist", "()")
	testEvalIn(t, in, "(setq x 1)", "1")
	testEvalIn(t, in, "(def y 'z)", "y")
	testEvalIn(t, in, "alist", "((y 'z) (x 1))")
}

// --- Lambda application ---

func TestEvalLambda(t *testing.T) {
	testEval(t, "((lambda (x) (* x 2)) 21)", "42")
	testEval(t, "((lambda (a b) (list b a)) 1 2)", "(2 1)")
	testEval(t, "((lambda () 1 2 3))", "3")
	testEval(t, "((lambda ()))", "()")
	testEval(t, "((lambda (x x) x) 1 2)", "2")
}

func TestEvalDynamicScope(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(defun getx () x)", "getx")
	testEvalIn(t, in, "(defun withx (x) (getx))", "withx")
	testEvalIn(t, in, "(withx 42)", "42")
	testEvalIn(t, in, "(getx)", "()")
}

func TestEvalSymbolIndirection(t *testing.T) {
	in := newTestInterp(&bytes.Buffer{})
	testEvalIn(t, in, "(def plus +)", "plus")
	testEvalIn(t, in, "(plus 1 2)", "3")
	testEvalIn(t, in, "(setq f '(lambda (x) (cons x nil)))", "(lambda (x) (cons x nil))")
	testEvalIn(t, in, "(f 1)", "(1)")
}

func TestEvalPrimitiveEval(t *testing.T) {
	testEval(t, "(eval '(+ 1 2))", "3")
	testEval(t, "((lambda (x) (eval 'x)) 4)", "4")
}

func TestEvalPrint(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterp(&out)
	testEvalIn(t, in, "(print 1 'a '(b c))", "(b c)")
	testEvalIn(t, in, "(print)", "()")
	if got, want := out.String(), "1 a (b c)\n\n"; got != want {
		t.Fatalf("print output = %q, want %q", got, want)
	}
}

func TestEvalArgumentOrder(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterp(&out)
	testEvalIn(t, in, "(list (print 1) (print 2) (print 3))", "(1 2 3)")
	if got := out.String(); got != "1\n2\n3\n" {
		t.Fatalf("arguments evaluated out of order: %q", got)
	}
}

// --- Errors ---

func TestEvalApplyErrors(t *testing.T) {
	for _, input := range []string{
		"(undefined-fn 1)",
		"(t 1)",
		"((quote f) 1)",
		"(1 2)",
		"(def f f) (f)",
	} {
		err := testEvalError(t, input)
		var ae *ApplyError
		if !errors.As(err, &ae) {
			t.Fatalf("%q: expected ApplyError, got %T: %v", input, err, err)
		}
	}
}

func TestEvalArgErrors(t *testing.T) {
	for _, input := range []string{
		"(car 1)",
		"(cdr 'a)",
		"(/)",
		"(-)",
		"(+ 1 'a)",
		"(< 1)",
		"(cos)",
		"(cons 1)",
		"(eval)",
		"(append '(1) 2)",
		"(quote)",
		"(quote a b)",
		"(setq a)",
		"(setq 1 2)",
		"(setq t 2)",
		"(set 1 2)",
		"(def x)",
		"(defun f)",
		"(defun f x x)",
		"(cond x)",
		"(cond (t))",
		"((lambda (x) x))",
		"((lambda (x) x) 1 2)",
		"((lambda (1) 1) 1)",
		"((lambda x x) 1)",
	} {
		err := testEvalError(t, input)
		var ae *ArgError
		if !errors.As(err, &ae) {
			t.Fatalf("%q: expected ArgError, got %T: %v", input, err, err)
		}
	}
}

func TestEvalRecursionLimit(t *testing.T) {
	in := NewInterpreter(Config{Out: &bytes.Buffer{}, MaxDepth: 200})
	if _, err := in.EvalString("(defun forever (n) (forever n))"); err != nil {
		t.Fatal(err)
	}
	_, err := in.EvalString("(forever 1)")
	var de *DepthError
	if !errors.As(err, &de) {
		t.Fatalf("expected DepthError, got %v", err)
	}
	if de.Limit != 200 {
		t.Fatalf("expected limit 200, got %d", de.Limit)
	}
	// The interpreter stays usable afterwards.
	testEvalIn(t, in, "(+ 1 1)", "2")
}

// --- Truthy ---

func TestSexprTruthy(t *testing.T) {
	cases := []struct {
		val    Sexpr
		truthy bool
	}{
		{Nil(), false},
		{ListVal([]Sexpr{}), false},
		{True(), true},
		{NumberVal(0), true},
		{SymbolVal("nil"), true},
		{ListVal([]Sexpr{Nil()}), true},
	}
	for _, tc := range cases {
		if tc.val.Truthy() != tc.truthy {
			t.Fatalf("%s.Truthy() = %v, want %v", tc.val.String(), tc.val.Truthy(), tc.truthy)
		}
	}
}
