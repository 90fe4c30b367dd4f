package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	lisp "github.com/adumont/PrimeLISP/core"
)

// session is the read-print loop around one interpreter.
type session struct {
	interp *lisp.Interpreter
	store  lisp.Snapshotter // nil when no snapshot database is configured
	out    io.Writer
	errOut io.Writer
	halt   bool // stop at the first error instead of continuing
}

// loop reads expressions until the reader is exhausted and returns the
// process exit code.
func (s *session) loop(r *lisp.Reader) int {
	for {
		expr, err := r.ReadSexp()
		if errors.Is(err, io.EOF) {
			return 0
		}
		if err != nil {
			r.Discard()
			fmt.Fprintf(s.errOut, "error: %v\n", err)
			if s.halt {
				return 1
			}
			continue
		}

		switch {
		case expr.Is("alist"):
			lisp.WriteAlist(s.out, s.interp.Root())
			continue
		case expr.Is("debug"):
			on := !s.interp.Debugging()
			s.interp.SetDebug(on, s.errOut)
			fmt.Fprintf(s.out, "debug %s\n", onOff(on))
			continue
		}

		val, err := s.interp.Evaluate(expr)
		if err != nil {
			fmt.Fprintf(s.errOut, "cannot eval %s: %v\n", expr.String(), err)
			if s.halt {
				return 1
			}
			continue
		}
		fmt.Fprintln(s.out, val.String())
	}
}

// command runs a colon command typed at the primary prompt.
func (s *session) command(line string) {
	fields := strings.Fields(strings.TrimPrefix(line, ":"))
	if len(fields) == 0 {
		fmt.Fprintln(s.errOut, "unknown command. Commands: :save NAME, :load NAME, :images, :drop NAME, :status")
		return
	}
	cmd, args := fields[0], fields[1:]

	if cmd == "status" {
		fmt.Fprintln(s.out, s.interp.Describe())
		return
	}
	if s.store == nil {
		fmt.Fprintln(s.errOut, "no snapshot database (set PRIMELISP_DB)")
		return
	}

	var err error
	switch cmd {
	case "images":
		var names []string
		if names, err = s.store.List(); err == nil {
			for _, n := range names {
				fmt.Fprintln(s.out, n)
			}
		}
	case "save", "load", "drop":
		if len(args) != 1 {
			err = fmt.Errorf(":%s expects an image name", cmd)
			break
		}
		err = s.image(cmd, args[0])
	default:
		err = fmt.Errorf("unknown command :%s", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.errOut, "error: %v\n", err)
	}
}

func (s *session) image(cmd, name string) error {
	switch cmd {
	case "save":
		if err := s.store.Save(name, s.interp.Bindings()); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "saved %s\n", name)
	case "load":
		bs, err := s.store.Load(name)
		if err != nil {
			return err
		}
		s.interp.Restore(bs)
		fmt.Fprintf(s.out, "loaded %s (%d bindings)\n", name, len(bs))
	case "drop":
		if err := s.store.Drop(name); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "dropped %s\n", name)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
