package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statebind/internal/api"
	"statebind/pkg/bind"
	"statebind/pkg/journal"
	"statebind/pkg/store"
	"statebind/pkg/todo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	seed, err := todo.LoadSeed(os.Getenv("TODO_SEED"))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	j, closeJournal, err := journal.Open(ctx)
	if err != nil {
		log.Fatalf("journal: %v", err)
	}
	defer closeJournal()

	// The recorder outlives the server so actions dispatched by draining
	// requests still reach the journal.
	recCtx, stopRecorder := context.WithCancel(context.Background())
	rec := journal.NewRecorder(j, "server", 256)
	recDone := make(chan struct{})
	go func() {
		rec.Run(recCtx)
		close(recDone)
	}()

	st, err := todo.NewStore(seed, store.WithObserver(journal.Observer[todo.State](rec)))
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	host := bind.NewHost[todo.State]()
	if err := host.Provide(st); err != nil {
		log.Fatalf("provide store: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     api.New(host, j),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("statebind listening on :%s", port)
	if err := serve(ctx, srv, ln); err != nil {
		log.Printf("server: %v", err)
	}
	stopRecorder()
	<-recDone
}

// serve runs srv on ln until ctx is cancelled. It returns only once Shutdown
// has finished draining in-flight requests.
func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errc; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
