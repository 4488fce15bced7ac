package main

import (
	"context"
	"flag"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hyperlendp2p/config"
	"hyperlendp2p/core/events"
	nativecommon "hyperlendp2p/native/common"
	"hyperlendp2p/native/lending"
	"hyperlendp2p/observability/logging"
	"hyperlendp2p/rpc"
)

const eventBufferSize = 1024

func main() {
	configPath := flag.String("config", "config.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Service, cfg.Environment)

	ledger := lending.NewLedger()
	for _, token := range cfg.Tokens {
		addr := common.HexToAddress(token.Address)
		ledger.RegisterToken(addr, token.Symbol, token.Decimals)
		for _, entry := range token.Genesis {
			amount, ok := new(big.Int).SetString(entry.Amount, 10)
			if !ok {
				logger.Error("invalid genesis amount", "token", token.Symbol, "amount", entry.Amount)
				os.Exit(1)
			}
			if err := ledger.Mint(addr, common.HexToAddress(entry.Address), amount); err != nil {
				logger.Error("seed genesis balance", "token", token.Symbol, "err", err)
				os.Exit(1)
			}
		}
	}

	feeds := lending.NewFeedRegistry()
	for _, feed := range cfg.Feeds {
		feeds.Register(common.HexToAddress(feed.Address), lending.NewManualFeed(feed.Decimals))
	}

	params, err := cfg.Lending.Params()
	if err != nil {
		logger.Error("lending parameters", "err", err)
		os.Exit(1)
	}
	store, err := lending.NewParamStore(cfg.OwnerAddress(), params)
	if err != nil {
		logger.Error("parameter store", "err", err)
		os.Exit(1)
	}

	emitter := events.NewMemoryEmitter(eventBufferSize)
	store.SetEmitter(emitter)

	pauses := nativecommon.NewPauseSwitches(map[string]bool{"lending": cfg.Pauses.Lending})

	engine := lending.NewEngine(cfg.Module(), lending.NewRegistry(), ledger, feeds, store)
	engine.SetEmitter(emitter)
	engine.SetPauses(pauses)

	server := rpc.NewServer(engine, feeds, pauses, emitter)

	limiter := rpc.NewRateLimiter(rpc.RateLimit{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})

	router := chi.NewRouter()
	router.With(limiter.Middleware()).Post("/", server.Handle)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen and serve", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
