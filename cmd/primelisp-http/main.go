package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	lisp "github.com/adumont/PrimeLISP/core"
)

func main() {
	sockPath := lisp.EnvOr("PRIMELISP_SOCK", "/tmp/primelisp.sock")
	addr := lisp.EnvOr("PRIMELISP_HTTP_ADDR", ":8080")

	g := newGateway(func() (net.Conn, error) {
		return net.Dial("unix", sockPath)
	}, 30*time.Second)
	if err := g.open(); err != nil {
		log.Fatalf("connect to %s: %v", sockPath, err)
	}
	defer g.close()
	log.Printf("connected to primelisp core: %s", sockPath)

	srv := &http.Server{
		Addr:              addr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server: %v", err)
	}
}
