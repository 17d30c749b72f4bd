package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pokedraft/server/internal/catalog"
	"github.com/pokedraft/server/internal/config"
	"github.com/pokedraft/server/internal/httpapi"
	"github.com/pokedraft/server/internal/hub"
	"github.com/pokedraft/server/internal/ws"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// An unusable catalog means an unplayable server; refuse to start.
	dex, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatal("catalog load failed", zap.Error(err))
	}
	log.Info("catalog loaded",
		zap.String("path", cfg.CatalogPath),
		zap.Int("eligible", dex.Len()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Config{
		RoundLimit:  cfg.RoundLimit,
		RevealDelay: cfg.RevealDelay,
		Sampler:     dex,
		Logger:      log,
	})

	bounds := ws.Bounds{PlayersMin: cfg.PlayersMin, PlayersMax: cfg.PlayersMax}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, bounds, cfg.StaticDir, log),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
