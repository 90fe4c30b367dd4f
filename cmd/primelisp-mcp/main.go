package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	lisp "github.com/adumont/PrimeLISP/core"
)

var (
	conn   net.Conn
	connMu sync.Mutex
)

// send sends a request to the primelisp core and returns the response.
func send(req map[string]any) (map[string]any, error) {
	req["id"] = lisp.NextID()
	connMu.Lock()
	defer connMu.Unlock()
	if err := lisp.WriteMsg(conn, req); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	resp, err := lisp.ReadMsg(conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return resp, nil
}

// formatResult turns a core response into an MCP tool result.
func formatResult(resp map[string]any) (*mcp.CallToolResult, error) {
	ok, _ := resp["ok"].(bool)
	if !ok {
		errMsg, _ := resp["error"].(string)
		if errMsg == "" {
			errMsg = "unknown error"
		}
		if output, _ := resp["output"].(string); output != "" {
			errMsg = output + errMsg
		}
		return mcp.NewToolResultError(errMsg), nil
	}
	if text, ok := resp["text"].(string); ok {
		output, _ := resp["output"].(string)
		return mcp.NewToolResultText(output + text), nil
	}
	out, err := json.MarshalIndent(resp["value"], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func forward(req map[string]any) (*mcp.CallToolResult, error) {
	resp, err := send(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return formatResult(resp)
}

func handleEval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expr, err := request.RequireString("expr")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return forward(map[string]any{"op": "eval", "expr": expr})
}

func handleAlist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(map[string]any{"op": "alist"})
}

func handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(map[string]any{"op": "reset"})
}

func handleTraces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := map[string]any{"op": "traces"}
	if n := request.GetFloat("n", 0); n > 0 {
		req["n"] = n
	}
	return forward(req)
}

func handleImage(op string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return forward(map[string]any{"op": op, "name": name})
	}
}

func main() {
	sockPath := lisp.EnvOr("PRIMELISP_SOCK", "/tmp/primelisp.sock")

	var err error
	conn, err = net.Dial("unix", sockPath)
	if err != nil {
		log.Fatalf("connect to %s: %v", sockPath, err)
	}
	defer conn.Close()
	log.Printf("connected to primelisp core: %s", sockPath)

	s := server.NewMCPServer(
		"primelisp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(
		mcp.NewTool("primelisp_eval",
			mcp.WithDescription("Evaluate PrimeLISP expressions against the shared root environment. Returns printed output followed by the last value."),
			mcp.WithString("expr",
				mcp.Required(),
				mcp.Description("One or more S-expressions, e.g. (defun sq (x) (* x x)) (sq 4)"),
			),
		),
		handleEval,
	)

	s.AddTool(
		mcp.NewTool("primelisp_alist",
			mcp.WithDescription("List the bindings of the root environment, newest first."),
		),
		handleAlist,
	)

	s.AddTool(
		mcp.NewTool("primelisp_reset",
			mcp.WithDescription("Empty the root environment and drop evaluation traces."),
		),
		handleReset,
	)

	s.AddTool(
		mcp.NewTool("primelisp_traces",
			mcp.WithDescription("Return recent top-level evaluation traces."),
			mcp.WithNumber("n",
				mcp.Description("Number of traces to return; all when omitted"),
			),
		),
		handleTraces,
	)

	s.AddTool(
		mcp.NewTool("primelisp_save",
			mcp.WithDescription("Save the root environment as a named image in the snapshot database."),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Image name"),
			),
		),
		handleImage("save"),
	)

	s.AddTool(
		mcp.NewTool("primelisp_load",
			mcp.WithDescription("Replace the root environment with a saved image."),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Image name"),
			),
		),
		handleImage("load"),
	)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
