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

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
	"github.com/dreamware/arbiter/internal/coordinator"
	"github.com/dreamware/arbiter/internal/storage"
)

// config is the coordinator's process configuration, read from the environment.
type config struct {
	addr            string
	fleetConfig     string
	catalogDB       string
	dispatchTimeout time.Duration
	shuffleDeadline time.Duration
	reapInterval    time.Duration
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	coord, closeStore, err := buildCoordinator(cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer closeStore()
	log.Printf("fleet of %d data nodes loaded from %s", coord.Fleet().Size(), cfg.fleetConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.shuffleDeadline > 0 {
		reaper := coordinator.NewReaper(coord.Barrier(), cfg.reapInterval)
		reaper.SetOnExpired(func(fileID string) {
			log.Printf("shuffle round for %s timed out after %v", fileID, cfg.shuffleDeadline)
		})
		go reaper.Start(ctx)
		defer reaper.Stop()
	}

	httpSrv := &http.Server{
		Addr:              cfg.addr,
		Handler:           newServer(coord).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("coordinator listening on %s", cfg.addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Println("coordinator stopped")
}

func loadConfig() (config, error) {
	cfg := config{
		addr:        getenv("COORDINATOR_ADDR", ":8080"),
		fleetConfig: getenv("FLEET_CONFIG", "data_nodes.yaml"),
		catalogDB:   getenv("CATALOG_DB", ""),
	}
	var err error
	if cfg.dispatchTimeout, err = getduration("DISPATCH_TIMEOUT", coordinator.DefaultDispatchTimeout); err != nil {
		return config{}, err
	}
	if cfg.shuffleDeadline, err = getduration("SHUFFLE_DEADLINE", 0); err != nil {
		return config{}, err
	}
	if cfg.reapInterval, err = getduration("REAP_INTERVAL", 30*time.Second); err != nil {
		return config{}, err
	}
	if cfg.reapInterval <= 0 {
		return config{}, fmt.Errorf("REAP_INTERVAL must be positive, got %v", cfg.reapInterval)
	}
	return cfg, nil
}

// buildCoordinator loads the fleet and opens the catalog store. An empty
// catalogDB keeps file records in memory. The returned func closes the store.
func buildCoordinator(cfg config) (*coordinator.Coordinator, func() error, error) {
	fleet, err := cluster.LoadFleetConfig(cfg.fleetConfig)
	if err != nil {
		return nil, nil, err
	}

	var store storage.Store = storage.NewMemoryStore()
	closeStore := func() error { return nil }
	if cfg.catalogDB != "" {
		db, err := storage.OpenBoltStore(cfg.catalogDB)
		if err != nil {
			return nil, nil, err
		}
		store, closeStore = db, db.Close
		log.Printf("catalog persisted in %s", cfg.catalogDB)
	}

	return coordinator.New(fleet, catalog.New(store), cluster.Client{}, coordinator.Config{
		DispatchTimeout: cfg.dispatchTimeout,
		ShuffleDeadline: cfg.shuffleDeadline,
	}), closeStore, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
