package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"homegraph/pkg/server"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 10 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	log.Println("Starting homegraph...")

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := server.InitializeStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ingestHandler, fetcher, hub, refresher := server.InitializeHandlers(store, cfg)

	mqttSource, err := server.InitializeMQTT(cfg, store)
	if err != nil {
		log.Fatalf("Failed to start MQTT source: %v", err)
	}
	if mqttSource != nil {
		defer mqttSource.Close()
	}

	// WebSocket hub lifecycle is tied to this context
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Background tasks
	stop := make(chan bool)
	var wg sync.WaitGroup
	wg.Add(3)
	go refresher.Run(stop, &wg)
	go server.RunRetention(store, stop, &wg)
	go server.RunBadgerGC(store, stop, &wg)

	router := mux.NewRouter()
	server.SetupRoutes(router, ingestHandler, fetcher, hub, refresher, store, cfg.Widget, cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("homegraph listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	close(stop)
	hubCancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Shutdown complete")
}
