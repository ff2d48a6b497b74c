// README: Entry point; loads config, wires module services, starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tandem/internal/ai"
	"tandem/internal/config"
	httptransport "tandem/internal/http"
	"tandem/internal/infra"
	"tandem/internal/maps"
	"tandem/internal/modules/aiusage"
	"tandem/internal/modules/carpooler"
	"tandem/internal/modules/matching"
	"tandem/internal/modules/stops"
	"tandem/internal/modules/trip"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	stopsStore := stops.NewStore(dbPool)
	stopsSvc := stops.NewService(stopsStore)

	carpoolerStore := carpooler.NewStore(dbPool)
	carpoolerSvc := carpooler.NewService(carpoolerStore)

	tripStore := trip.NewStore(dbPool)
	tripSvc := trip.NewService(tripStore, carpoolerSvc, carpoolerSvc)

	matchingSvc := matching.NewService(stopsStore, carpoolerStore, cfg.Matching).
		WithCache(matching.NewCache(redisClient, cfg.Matching.CacheTTL))

	if cfg.Oracle.GeminiKey != "" {
		ranker, err := ai.NewGeminiRanker(ctx, cfg.Oracle.GeminiKey)
		if err != nil {
			log.Printf("gemini init failed, matching runs without oracle: %v", err)
		} else {
			defer ranker.Close()
			quota := aiusage.NewService(aiusage.NewStore(dbPool))
			matchingSvc.WithOracle(ranker, quota, cfg.Oracle.Timeout)
		}
	}

	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Printf("maps init failed, matches carry no travel estimate: %v", err)
		} else {
			matchingSvc.WithEstimator(routeSvc)
		}
	}

	handler := httptransport.NewRouter(httptransport.ServerDeps{
		Stops:     stopsSvc,
		Carpooler: carpoolerSvc,
		Matching:  matchingSvc,
		Trip:      tripSvc,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
