package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	lisp "github.com/adumont/PrimeLISP/core"
	"github.com/adumont/PrimeLISP/store"
)

func main() {
	sockPath := lisp.EnvOr("PRIMELISP_SOCK", "/tmp/primelisp.sock")
	dbPath := os.Getenv("PRIMELISP_DB")

	interp := lisp.NewInterpreter(lisp.ConfigFromEnv())

	var snaps lisp.Snapshotter
	var st *store.Store
	if dbPath != "" {
		var err error
		st, err = store.Open(dbPath)
		if err != nil {
			log.Fatalf("failed to open snapshot store: %v", err)
		}
		snaps = st
	}

	core := lisp.NewCore(interp, snaps)
	if err := core.Listen(sockPath); err != nil {
		log.Fatalf("failed to start core: %v", err)
	}

	// Handle shutdown signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("shutting down...")
		core.Shutdown()
		if st != nil {
			st.Close()
		}
		os.Remove(sockPath)
		os.Exit(0)
	}()

	if dbPath != "" {
		log.Printf("primelisp core listening (socket: %s, snapshots: %s)", sockPath, dbPath)
	} else {
		log.Printf("primelisp core listening (socket: %s)", sockPath)
	}
	core.Run()
}
