package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/derivaoption/internal/engine"
	"github.com/betbot/derivaoption/internal/events"
	"github.com/betbot/derivaoption/internal/indexer"
	"github.com/betbot/derivaoption/internal/ledger"
	"github.com/betbot/derivaoption/internal/oracle"
	"github.com/betbot/derivaoption/internal/registry"
	"github.com/betbot/derivaoption/internal/server"
	"github.com/betbot/derivaoption/pkg/config"
	"github.com/betbot/derivaoption/pkg/logger"
	"github.com/betbot/derivaoption/pkg/persistence"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	var configPath = flag.String("config", os.Getenv("DERIVA_CONFIG"), "config yaml path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent("server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New()
	tokenLedger := ledger.NewInMemoryLedger()
	vault := ledger.NewNativeVault()
	bus := events.NewBus()

	rounds := oracle.NewRoundStore()
	adapter := oracle.NewAdapter(rounds, cfg.OracleMaxAge())
	if cfg.Oracle.RESTURL != "" {
		rest := oracle.NewRESTClient(cfg.Oracle.RESTURL, cfg.Oracle.FeedSymbol)
		seedCtx, seedCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := rest.Seed(seedCtx, rounds); err != nil {
			log.Warnf("seed oracle price failed: %v", err)
		}
		seedCancel()
	}
	if cfg.Oracle.FeedURL != "" {
		feed := oracle.NewWSFeed(cfg.Oracle.FeedURL, cfg.Oracle.FeedSymbol, rounds, logger.WithComponent("oracle-feed"))
		go feed.Run(ctx)
	}

	eng, err := engine.New(engine.Config{
		Registry:   reg,
		Ledger:     tokenLedger,
		Vault:      vault,
		Oracle:     adapter,
		Bus:        bus,
		QuoteToken: cfg.QuoteTokenAddress(),
	})
	if err != nil {
		log.Fatalf("init engine failed: %v", err)
	}

	// Restore the last engine snapshot, if one was saved.
	store, err := persistence.Open(cfg.SnapshotDir)
	if err != nil {
		log.Fatalf("open snapshot store failed: %v", err)
	}
	defer store.Close()
	snapStore := store.NewStore("derivaoption", "engine")
	var snap engine.Snapshot
	switch err := snapStore.Load(&snap); {
	case err == nil:
		eng.Restore(&snap)
		log.Infof("restored snapshot: orders=%d purchases=%d options=%d",
			eng.LastOrderID(), eng.LastPurchaseID(), eng.LastOptionID())
	case errors.Is(err, persistence.ErrNotExists):
		log.Info("no snapshot found, starting fresh")
	default:
		log.Fatalf("load snapshot failed: %v", err)
	}
	saveSnapshot := func() error {
		return snapStore.Save(eng.Snapshot())
	}

	idx, err := indexer.Open(cfg.IndexerDB)
	if err != nil {
		log.Fatalf("open audit indexer failed: %v", err)
	}
	defer idx.Close()
	idx.Attach(bus)

	srv, err := server.New(server.Config{
		Engine:     eng,
		Registry:   reg,
		Ledger:     tokenLedger,
		Vault:      vault,
		Oracle:     rounds,
		Adapter:    adapter,
		Indexer:    idx,
		SnapshotFn: saveSnapshot,
	})
	if err != nil {
		log.Fatalf("init server failed: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("derivaoption listening on %s", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	if err := saveSnapshot(); err != nil {
		log.Errorf("save snapshot on shutdown failed: %v", err)
	}

	fmt.Println("server stopped")
}
