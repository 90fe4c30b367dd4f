package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	lisp "github.com/adumont/PrimeLISP/core"
)

const usage = `usage: primelisp-cli [-raw] [EXPR ...]

Evaluates PrimeLISP source on a running primelisp core. The source is the
arguments joined by spaces, or stdin when there are none. Printed output is
shown first, then the value of the last expression.

With -raw, stdin is one JSON request sent as is, e.g. {"op": "alist"}, and
the response is printed as JSON.
`

func main() {
	sockPath := lisp.EnvOr("PRIMELISP_SOCK", "/tmp/primelisp.sock")
	dial := func() (net.Conn, error) { return net.Dial("unix", sockPath) }
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, dial))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, dial func() (net.Conn, error)) int {
	fs := flag.NewFlagSet("primelisp-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	raw := fs.Bool("raw", false, "send stdin as a JSON request")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var msg map[string]any
	if *raw {
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "read stdin: %v\n", err)
			return 1
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			fmt.Fprintf(stderr, "parse JSON: %v\n", err)
			return 1
		}
	} else {
		src := strings.Join(fs.Args(), " ")
		if fs.NArg() == 0 {
			data, err := io.ReadAll(stdin)
			if err != nil {
				fmt.Fprintf(stderr, "read stdin: %v\n", err)
				return 1
			}
			src = string(data)
		}
		if strings.TrimSpace(src) == "" {
			fs.Usage()
			return 1
		}
		msg = map[string]any{"op": "eval", "expr": src}
	}
	if _, ok := msg["id"]; !ok {
		msg["id"] = lisp.NextID()
	}

	resp, err := roundTrip(dial, msg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ok, _ := resp["ok"].(bool)
	if *raw {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "format response: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(out))
	} else {
		output, _ := resp["output"].(string)
		fmt.Fprint(stdout, output)
		if ok {
			text, _ := resp["text"].(string)
			fmt.Fprintln(stdout, text)
		} else {
			fmt.Fprintf(stderr, "error: %v\n", resp["error"])
		}
	}
	if !ok {
		return 2
	}
	return 0
}

func roundTrip(dial func() (net.Conn, error), msg map[string]any) (map[string]any, error) {
	conn, err := dial()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if err := lisp.WriteMsg(conn, msg); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	resp, err := lisp.ReadMsg(conn)
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	return resp, nil
}
