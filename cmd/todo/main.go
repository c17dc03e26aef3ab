package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"

	"statebind/internal/api"
	"statebind/internal/ui"
	"statebind/pkg/bind"
	"statebind/pkg/journal"
	"statebind/pkg/store"
	"statebind/pkg/todo"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed, err := todo.LoadSeed(os.Getenv("TODO_SEED"))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	j, closeJournal, err := journal.Open(ctx)
	if err != nil {
		log.Fatalf("journal: %v", err)
	}
	rec := journal.NewRecorder(j, "todo", 256)
	recDone := make(chan struct{})
	go func() {
		rec.Run(ctx)
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

	if addr := os.Getenv("API_ADDR"); addr != "" {
		go func() {
			log.Printf("todo: api listening on %s", addr)
			if err := http.ListenAndServe(addr, api.New(host, j)); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("todo: api: %v", err)
			}
		}()
	}

	title := os.Getenv("TODO_TITLE")
	if title == "" {
		title = "Task list"
	}

	go func() {
		w := new(app.Window)
		w.Option(app.Title(title))
		w.Option(app.Size(unit.Dp(480), unit.Dp(640)))

		form := ui.NewForm(ui.NewTheme(), w.Invalidate)
		bound := todo.Connect(form)
		err := bound.Run(host, todo.Own{Title: title}, func() error {
			return run(w, form)
		})

		cancel()
		<-recDone
		closeJournal()
		if err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func run(w *app.Window, form *ui.Form) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			form.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}
