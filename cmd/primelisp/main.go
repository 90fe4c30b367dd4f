package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	lisp "github.com/adumont/PrimeLISP/core"
	"github.com/adumont/PrimeLISP/store"
)

const (
	promptMain = "Lisp>"
	promptCont = "....>"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	interp := lisp.NewInterpreter(lisp.ConfigFromEnv())
	s := &session{
		interp: interp,
		out:    os.Stdout,
		errOut: os.Stderr,
		halt:   haltOnError(),
	}

	if dbPath := os.Getenv("PRIMELISP_DB"); dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "snapshot store: %v\n", err)
			return 1
		}
		defer st.Close()
		s.store = st
	}

	if len(args) > 0 {
		return runFiles(s, args)
	}
	return runInteractive(s)
}

// haltOnError reports whether the session should stop at the first error.
// Setting PRIMELISP_CONTINUE_ON_ERROR keeps the REPL going instead.
func haltOnError() bool {
	return os.Getenv("PRIMELISP_CONTINUE_ON_ERROR") == ""
}

// runFiles evaluates each file in turn and stops at the first error.
func runFiles(s *session, paths []string) int {
	s.halt = true
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintln(s.errOut, err)
			return 1
		}
		src := lisp.NewIncludeSource(lisp.NewScannerSource(f), filepath.Dir(path))
		code := s.loop(lisp.NewReader(src))
		f.Close()
		if code != 0 {
			return code
		}
	}
	return 0
}

func runInteractive(s *session) int {
	home, _ := os.UserHomeDir()
	histPath := lisp.EnvOr("PRIMELISP_HISTORY", filepath.Join(home, ".primelisp_history"))

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	var reader *lisp.Reader
	prompt := func() (string, error) {
		for {
			p := promptMain
			if reader.InExpr() {
				p = promptCont
			}
			line, err := ln.Prompt(p)
			if err != nil {
				// Ctrl-D, Ctrl-C and terminal failures all end the session.
				if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
					fmt.Fprintln(s.errOut, err)
				}
				return "", io.EOF
			}
			if p == promptMain {
				if strings.TrimSpace(line) == "" {
					return "", io.EOF
				}
				if strings.HasPrefix(line, ":") {
					ln.AppendHistory(line)
					s.command(line)
					continue
				}
			}
			ln.AppendHistory(line)
			return line, nil
		}
	}

	cwd, _ := os.Getwd()
	reader = lisp.NewReader(lisp.NewIncludeSource(lisp.LineFunc(prompt), cwd))
	code := s.loop(reader)
	fmt.Fprintln(s.out)
	return code
}
