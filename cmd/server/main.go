// wfkernel server - embeddable workflow execution kernel
package main

import (
	"log"

	"github.com/smilemakc/wfkernel/pkg/server"
)

func main() {
	srv, err := server.New()
	if err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
