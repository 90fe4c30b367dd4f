package lisp

import (
	"errors"
	"io"
	"strconv"
)

// Reader turns a LineSource into expressions. Lines are pulled only when
// the current buffer is exhausted, so an interactive source is prompted
// exactly when more input is needed.
type Reader struct {
	src   LineSource
	buf   []rune
	pos   int
	line  int
	depth int
	eof   bool
}

func NewReader(src LineSource) *Reader {
	return &Reader{src: src}
}

// InExpr reports whether the reader is part way through an expression.
func (r *Reader) InExpr() bool { return r.depth > 0 }

// Discard drops the rest of the current line, e.g. after a parse error.
func (r *Reader) Discard() {
	r.buf = nil
	r.pos = 0
	r.depth = 0
}

// nextChar peeks at the next character, pulling a line if needed. Each
// line is terminated with '\n' so tokens never span lines.
func (r *Reader) nextChar() (rune, error) {
	for r.pos >= len(r.buf) {
		if r.eof {
			return 0, io.EOF
		}
		line, err := r.src.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
			}
			return 0, err
		}
		r.line++
		r.buf = append([]rune(line), '\n')
		r.pos = 0
	}
	return r.buf[r.pos], nil
}

func (r *Reader) getChar() (rune, error) {
	ch, err := r.nextChar()
	if err != nil {
		return 0, err
	}
	r.pos++
	return ch, nil
}

type tokenKind int

const (
	tokOpen tokenKind = iota
	tokClose
	tokQuote
	tokAtom
)

type token struct {
	kind tokenKind
	atom Sexpr
}

func (r *Reader) getToken() (token, error) {
	for {
		ch, err := r.nextChar()
		if err != nil {
			return token{}, err
		}
		if ch > ' ' {
			break
		}
		r.pos++
	}
	ch, _ := r.getChar()
	switch ch {
	case '(':
		return token{kind: tokOpen}, nil
	case ')':
		return token{kind: tokClose}, nil
	case '\'':
		return token{kind: tokQuote}, nil
	}
	text := []rune{ch}
	for {
		next, err := r.nextChar()
		if err != nil || next <= ' ' || next == '(' || next == ')' {
			break
		}
		r.pos++
		text = append(text, next)
	}
	s := string(text)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return token{kind: tokAtom, atom: NumberVal(f)}, nil
	}
	return token{kind: tokAtom, atom: SymbolVal(s)}, nil
}

// ReadSexp reads one expression. It returns io.EOF, unwrapped, when the
// source ends before the expression starts; running out of input inside
// an expression is a ParseError.
func (r *Reader) ReadSexp() (Sexpr, error) {
	r.depth = 0
	s, err := r.readSexp()
	r.depth = 0
	return s, err
}

func (r *Reader) readSexp() (Sexpr, error) {
	tok, err := r.getToken()
	if err != nil {
		return Sexpr{}, r.wrapEOF(err)
	}
	switch tok.kind {
	case tokAtom:
		return tok.atom, nil
	case tokClose:
		return Sexpr{}, r.errorf("unexpected )")
	case tokQuote:
		r.depth++
		defer func() { r.depth-- }()
		quoted, err := r.readQuoted()
		if err != nil {
			return Sexpr{}, err
		}
		return ListVal([]Sexpr{SymbolVal("quote"), quoted}), nil
	}

	r.depth++
	defer func() { r.depth-- }()
	items := []Sexpr{}
	for {
		tok, err := r.peekClose()
		if err != nil {
			return Sexpr{}, err
		}
		if tok {
			return ListVal(items), nil
		}
		item, err := r.readSexp()
		if err != nil {
			return Sexpr{}, err
		}
		items = append(items, item)
	}
}

func (r *Reader) readQuoted() (Sexpr, error) {
	closing, err := r.peekClose()
	if err != nil {
		return Sexpr{}, err
	}
	if closing {
		return Sexpr{}, r.errorf("quote followed by )")
	}
	return r.readSexp()
}

// peekClose skips whitespace and consumes a ')' if one is next.
func (r *Reader) peekClose() (bool, error) {
	for {
		ch, err := r.nextChar()
		if err != nil {
			return false, r.wrapEOF(err)
		}
		if ch > ' ' {
			if ch == ')' {
				r.pos++
				return true, nil
			}
			return false, nil
		}
		r.pos++
	}
}

func (r *Reader) wrapEOF(err error) error {
	if errors.Is(err, io.EOF) && r.depth > 0 {
		return r.errorf("unexpected end of input")
	}
	return err
}

func (r *Reader) errorf(msg string) error {
	return &ParseError{Line: r.line, Msg: msg}
}

// Parse parses exactly one expression from input.
func Parse(input string) (Sexpr, error) {
	r := NewReader(NewStringSource(input))
	s, err := r.ReadSexp()
	if errors.Is(err, io.EOF) {
		return Sexpr{}, &ParseError{Msg: "empty input"}
	}
	if err != nil {
		return Sexpr{}, err
	}
	if _, err := r.getToken(); err == nil {
		return Sexpr{}, r.errorf("unexpected input after expression")
	} else if !errors.Is(err, io.EOF) {
		return Sexpr{}, err
	}
	return s, nil
}

// ParseAll parses every expression in input.
func ParseAll(input string) ([]Sexpr, error) {
	r := NewReader(NewStringSource(input))
	var out []Sexpr
	for {
		s, err := r.ReadSexp()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}
