package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/certen/slasher-proxy/internal/config"
	"github.com/certen/slasher-proxy/internal/dashboard"
	"github.com/certen/slasher-proxy/internal/ethrpc"
	"github.com/certen/slasher-proxy/internal/ingest"
	"github.com/certen/slasher-proxy/internal/relay"
	"github.com/certen/slasher-proxy/internal/source"
	"github.com/certen/slasher-proxy/internal/store"
	"github.com/certen/slasher-proxy/internal/verify"
)

// healthStatus tracks component connectivity for the /health endpoints,
// updated during startup and by the background event-source goroutine.
type healthStatus struct {
	mu           sync.RWMutex
	Store        string    `json:"store"`
	ValidatorRPC string    `json:"validator_rpc"`
	Source       string    `json:"source"`
	StartedAt    time.Time `json:"started_at"`
}

func newHealthStatus() *healthStatus {
	return &healthStatus{Store: "unknown", ValidatorRPC: "unknown", Source: "unknown", StartedAt: time.Now()}
}

func (h *healthStatus) setStore(v string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Store = v
}

func (h *healthStatus) setValidatorRPC(v string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ValidatorRPC = v
}

func (h *healthStatus) setSource(v string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Source = v
}

func (h *healthStatus) snapshot() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"store":          h.Store,
		"validator_rpc":  h.ValidatorRPC,
		"source":         h.Source,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	}
}

func (h *healthStatus) healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Store == "connected" && h.ValidatorRPC == "connected"
}

func printHelp() {
	fmt.Println("slasher-proxy: trust-minimizing JSON-RPC proxy and commitment verifier")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  slasher-proxy [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		envFile     = flag.String("env-file", "", "Path to a .env file to load")
		validatorID = flag.String("validator-id", "", "Validator ID (overrides VALIDATOR_ID/NODE_ID env var)")
		showHelp    = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	log.Println("starting slasher-proxy...")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *validatorID != "" {
		log.Printf("CLI flag override: validator-id=%s", *validatorID)
		cfg.ValidatorID = *validatorID
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	health := newHealthStatus()

	log.Println("connecting to persistent store...")
	storeClient, err := store.NewClient(cfg.DatabaseURL, store.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}
	defer storeClient.Close()
	health.setStore("connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := storeClient.MigrateUp(ctx); err != nil {
		log.Fatalf("failed to migrate store: %v", err)
	}
	if err := storeClient.CheckSentinels(ctx, cfg.NetworkName); err != nil {
		log.Fatalf("schema/network sentinel check failed: %v", err)
	}

	log.Println("connecting to validator rpc...")
	rpcClient, err := ethrpc.NewClient(cfg.RPCURL)
	if err != nil {
		log.Fatalf("failed to connect to validator rpc: %v", err)
	}
	defer rpcClient.Close()
	health.setValidatorRPC("connected")

	blockSource, err := source.Select(source.Config{
		DatabaseURL:      cfg.DatabaseURL,
		Channel:          cfg.BlocksChannel,
		WebsocketURL:     cfg.BlocksWebsocketURL,
		ReconnectBackoff: cfg.WSReconnectBackoff,
	})
	if err != nil {
		log.Fatalf("invalid block source configuration: %v", err)
	}

	ingestor := ingest.New(storeClient, rpcClient, cfg.ValidatorID, nil)
	engine := verify.New(storeClient, nil)
	worker := verify.NewWorker(engine, cfg.ValidatorID, nil)

	blockNumbers := make(chan uint64, 256)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx, blockNumbers)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		health.setSource("running")
		err := blockSource.Run(ctx, func(number uint64) {
			if err := ingestor.Ingest(ctx, number); err != nil {
				log.Printf("failed to ingest block %d: %v", number, err)
				return
			}
			select {
			case blockNumbers <- number:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("block source stopped unexpectedly: %v", err)
			health.setSource("stopped")
		}
	}()

	relayHandler := relay.NewHandler(storeClient, cfg.RPCURL, cfg.ValidatorID, nil)
	dashboardHandlers := dashboard.NewHandlers(storeClient, cfg.DashboardRowLimit, nil)

	mux := http.NewServeMux()
	mux.Handle("/eth_sendRawTransaction", relayHandler)
	mux.HandleFunc("/dashboard/transactions", dashboardHandlers.Transactions)
	mux.HandleFunc("/dashboard/commitments", dashboardHandlers.Commitments)
	mux.HandleFunc("/dashboard/blocks", dashboardHandlers.Blocks)
	mux.HandleFunc("/dashboard/nodestats", dashboardHandlers.NodeStats)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if health.healthy() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"healthy": health.healthy()})
	})
	mux.HandleFunc("/health/detailed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health.snapshot())
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: mux,
	}

	go func() {
		log.Printf("listening on %s", cfg.ListenAddr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()
	close(blockNumbers)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("slasher-proxy stopped")
}
