// Command backend is a minimal origin server used to exercise the gateway
// manually. It is not part of the load balancer
// itself (SPEC_FULL §13.1).
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tanmay/gateway/internal/config"
)

func main() {
	cfg, err := config.ParseBackend(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Delay > 0 {
			time.Sleep(cfg.Delay)
		}
		fmt.Fprintf(w, "Hello from backend server: %s", cfg.Name)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("backend %q listening on %s", cfg.Name, addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
