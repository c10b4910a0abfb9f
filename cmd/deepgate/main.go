// Package main is the entry point for the deepgate gateway.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/deepgate/deepgate/internal/admin"
	"github.com/deepgate/deepgate/internal/config"
	"github.com/deepgate/deepgate/internal/dispatcher"
	"github.com/deepgate/deepgate/internal/metrics"
	"github.com/deepgate/deepgate/internal/server"
	"github.com/deepgate/deepgate/internal/store"
	"github.com/deepgate/deepgate/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	repo, err := sqlite.Open(context.Background(), cfg.Store.Datasource)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer repo.Close()

	pool := loadPoolSettings(repo)
	disp := dispatcher.New(repo, pool)

	var collectors *metrics.Collectors
	if cfg.Metrics.Enabled {
		collectors = metrics.New(disp.InFlightCount)
	}

	publicServer := server.New(cfg, disp, repo, collectors)
	adminServer := admin.New(cfg, repo, disp)

	mux := http.NewServeMux()
	mux.Handle("/admin/", adminServer)
	if collectors != nil {
		mux.Handle(cfg.Metrics.Path, collectors.Handler())
	}
	mux.Handle("/", publicServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("deepgate listening on :%d", cfg.Server.Port)

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// loadPoolSettings reads the persisted TCP pool knobs, falling back to
// dispatcher.DefaultPoolSettings for anything not yet configured.
func loadPoolSettings(repo store.Repository) dispatcher.PoolSettings {
	pool := dispatcher.DefaultPoolSettings

	if s, err := repo.GetSetting(context.Background(), store.SettingTCPConnectorLimit); err == nil {
		if v, err := s.Int(); err == nil {
			pool.Limit = v
		}
	}
	if s, err := repo.GetSetting(context.Background(), store.SettingTCPConnectorLimitPerHost); err == nil {
		if v, err := s.Int(); err == nil {
			pool.LimitPerHost = v
		}
	}
	if s, err := repo.GetSetting(context.Background(), store.SettingTCPKeepaliveTimeout); err == nil {
		if v, err := s.Int(); err == nil {
			pool.KeepaliveTimeout = time.Duration(v) * time.Second
		}
	}

	return pool
}
