package lisp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LineSource supplies raw input one line at a time. ReadLine returns
// io.EOF when there is nothing more to read.
type LineSource interface {
	ReadLine() (string, error)
}

// LineFunc adapts a prompt-style function to a LineSource.
type LineFunc func() (string, error)

func (f LineFunc) ReadLine() (string, error) { return f() }

// StringSource serves the lines of a fixed string.
type StringSource struct {
	lines []string
}

func NewStringSource(s string) *StringSource {
	return &StringSource{lines: strings.Split(s, "\n")}
}

func (s *StringSource) ReadLine() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

// ScannerSource reads lines from any io.Reader.
type ScannerSource struct {
	sc *bufio.Scanner
}

func NewScannerSource(r io.Reader) *ScannerSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &ScannerSource{sc: sc}
}

func (s *ScannerSource) ReadLine() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// maxIncludeDepth bounds @file nesting.
const maxIncludeDepth = 32

// IncludeSource wraps another source and expands lines of the form
// @filename into the lines of that file, recursively. Relative names in an
// included file resolve against that file's directory.
type IncludeSource struct {
	src     LineSource
	baseDir string
	stack   []*includeFrame
}

type includeFrame struct {
	path  string
	dir   string
	lines []string
}

func NewIncludeSource(src LineSource, baseDir string) *IncludeSource {
	return &IncludeSource{src: src, baseDir: baseDir}
}

func (s *IncludeSource) ReadLine() (string, error) {
	for {
		var line string
		dir := s.baseDir
		if n := len(s.stack); n > 0 {
			top := s.stack[n-1]
			if len(top.lines) == 0 {
				s.stack = s.stack[:n-1]
				continue
			}
			line = top.lines[0]
			top.lines = top.lines[1:]
			dir = top.dir
		} else {
			var err error
			line, err = s.src.ReadLine()
			if err != nil {
				return "", err
			}
		}

		line = strings.TrimRight(line, " \t\r")
		if !strings.HasPrefix(line, "@") {
			return line, nil
		}
		if err := s.push(strings.TrimSpace(line[1:]), dir); err != nil {
			return "", err
		}
	}
}

func (s *IncludeSource) push(name, dir string) error {
	if name == "" {
		return fmt.Errorf("include: missing file name")
	}
	path := name
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("include %s: %w", name, err)
	}
	if len(s.stack) >= maxIncludeDepth {
		return fmt.Errorf("include %s: nesting deeper than %d", name, maxIncludeDepth)
	}
	for _, f := range s.stack {
		if f.path == abs {
			return fmt.Errorf("include %s: cycle", name)
		}
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("include %s: %w", name, err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	s.stack = append(s.stack, &includeFrame{
		path:  abs,
		dir:   filepath.Dir(abs),
		lines: strings.Split(text, "\n"),
	})
	return nil
}
