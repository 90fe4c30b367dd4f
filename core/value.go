package lisp

import (
	"fmt"
	"strconv"
	"strings"
)

type SexprKind int

const (
	SxNumber SexprKind = iota
	SxSymbol
	SxList
)

// Sexpr is the single value and syntax type: a number, a symbol or a list.
// Lists are treated as immutable once built, so slices are shared freely.
type Sexpr struct {
	Kind  SexprKind
	Num   float64
	Sym   string
	Items []Sexpr
}

func NumberVal(f float64) Sexpr { return Sexpr{Kind: SxNumber, Num: f} }
func SymbolVal(s string) Sexpr  { return Sexpr{Kind: SxSymbol, Sym: s} }
func ListVal(items []Sexpr) Sexpr {
	return Sexpr{Kind: SxList, Items: items}
}
func Nil() Sexpr  { return Sexpr{Kind: SxList} }
func True() Sexpr { return SymbolVal("t") }

// Bool maps a Go boolean onto t / the empty list.
func Bool(b bool) Sexpr {
	if b {
		return True()
	}
	return Nil()
}

func (s Sexpr) IsNil() bool { return s.Kind == SxList && len(s.Items) == 0 }

// Is reports whether s is the symbol name.
func (s Sexpr) Is(name string) bool { return s.Kind == SxSymbol && s.Sym == name }

// Truthy: the empty list is false, everything else is true.
func (s Sexpr) Truthy() bool { return !s.IsNil() }

// String renders s the way the printer shows it: (a b c), 'x for
// (quote x), numbers in their shortest exact form.
func (s Sexpr) String() string {
	var sb strings.Builder
	s.write(&sb)
	return sb.String()
}

func (s Sexpr) write(sb *strings.Builder) {
	switch s.Kind {
	case SxNumber:
		sb.WriteString(strconv.FormatFloat(s.Num, 'g', -1, 64))
	case SxSymbol:
		sb.WriteString(s.Sym)
	case SxList:
		if len(s.Items) == 2 && s.Items[0].Is("quote") {
			sb.WriteByte('\'')
			s.Items[1].write(sb)
			return
		}
		sb.WriteByte('(')
		for i, item := range s.Items {
			if i > 0 {
				sb.WriteByte(' ')
			}
			item.write(sb)
		}
		sb.WriteByte(')')
	default:
		fmt.Fprintf(sb, "<unknown:%d>", s.Kind)
	}
}

// Equal compares two expressions structurally. Numbers compare with IEEE
// semantics, so NaN is never equal to itself.
func Equal(a, b Sexpr) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case SxNumber:
		return a.Num == b.Num
	case SxSymbol:
		return a.Sym == b.Sym
	case SxList:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// ValueToGo converts an expression to a native Go value for JSON encoding.
func ValueToGo(s Sexpr) any {
	switch s.Kind {
	case SxNumber:
		return s.Num
	case SxSymbol:
		return s.Sym
	default:
		arr := make([]any, len(s.Items))
		for i, item := range s.Items {
			arr[i] = ValueToGo(item)
		}
		return arr
	}
}
