package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trustmesh/native/scheduler"
	"trustmesh/observability/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup("trustmeshd", cfg.Env)

	svc, err := newService(cfg, logger)
	if err != nil {
		log.Fatalf("init service: %v", err)
	}
	defer svc.close()

	sched := scheduler.New(logger, svc.scheduledJobs())
	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	go sched.Start(schedCtx)

	go svc.deliverWebhooks(schedCtx)

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: svc.buildRouter(),
	}

	go func() {
		logger.Info("trustmeshd listening", "addr", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("trustmeshd shutting down")
	stopSched()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "graceful shutdown failed: %v\n", err)
	}
}
