package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/kenrgriggs/whatskennethdoing/modules/activity"
	"github.com/kenrgriggs/whatskennethdoing/modules/api"
	"github.com/kenrgriggs/whatskennethdoing/modules/broadcast"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== whatskennethdoing ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules. The activity store must start before the API can
	// serve requests; the framework starts modules in registration order.
	activityModule := activity.NewModule()
	broadcastModule := broadcast.NewModule()
	apiModule := api.NewModule()

	// The API needs the activity service, which only exists after the
	// activity module starts, so registration happens through a small
	// startup shim.
	app.Register(activityModule)
	app.Register(broadcastModule)
	app.Register(&wiring{
		activity:  activityModule,
		broadcast: broadcastModule,
		api:       apiModule,
	})
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	log.Println("[main] Dashboard API ready")

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// wiring connects modules that need each other's runtime objects. It runs
// after activity and broadcast have started and before the API starts.
type wiring struct {
	activity  *activity.Module
	broadcast *broadcast.Module
	api       *api.Module
}

func (w *wiring) Name() string { return "wiring" }

func (w *wiring) Start(_ context.Context) error {
	service := w.activity.Service()
	hub := w.broadcast.Hub()
	service.SetNotifier(hub)
	w.api.SetService(service)
	w.api.SetHub(hub)
	return nil
}

func (w *wiring) Stop(_ context.Context) error { return nil }
