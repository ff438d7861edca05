package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zusd/core/events"
	"zusd/crypto"
	"zusd/native/vault"
	"zusd/observability/logging"
	vaultserver "zusd/services/vaultd/server"
	"zusd/state/token"
)

const debtSymbol = "ZUSD"

// moduleAddress derives the engine's own ledger identity.
func moduleAddress() crypto.Address {
	payload := make([]byte, 20)
	copy(payload, []byte("zusd-vault-module"))
	return crypto.NewAddress(crypto.AccountPrefix, payload)
}

// logEmitter forwards engine events to the structured logger.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(ev events.Event) {
	l.logger.Info("engine event", "type", ev.EventType(), "event", ev)
}

func main() {
	cfg := LoadConfigFromEnv()
	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "listen address")
	flag.StringVar(&cfg.EnginePath, "engine-config", cfg.EnginePath, "path to the engine TOML configuration")
	flag.Parse()

	logger := logging.Setup("vaultd", cfg.Env)

	engineCfg, err := vault.LoadConfig(cfg.EnginePath)
	if err != nil {
		logger.Error("failed to load engine config", "path", cfg.EnginePath, "err", err)
		os.Exit(1)
	}

	engineAddr := moduleAddress()
	assets := make([]vault.Asset, 0, len(engineCfg.Assets))
	feeds := make([]vault.QuoteSource, 0, len(engineCfg.Assets))
	tokens := make([]vault.CollateralToken, 0, len(engineCfg.Assets))
	feedIndex := make(map[vault.Asset]*vault.StaticSource, len(engineCfg.Assets))
	ledgerIndex := make(map[vault.Asset]*token.Ledger, len(engineCfg.Assets))
	for _, assetCfg := range engineCfg.Assets {
		asset := vault.Asset(assetCfg.Symbol)
		price, err := assetCfg.ParsedFeedPrice()
		if err != nil {
			logger.Error("invalid feed seed", "asset", assetCfg.Symbol, "err", err)
			os.Exit(1)
		}
		feed := vault.NewStaticSource(price, assetCfg.FeedDecimals)
		ledger := token.NewLedger(assetCfg.Symbol, engineAddr)
		assets = append(assets, asset)
		feeds = append(feeds, feed)
		tokens = append(tokens, ledger)
		feedIndex[asset] = feed
		ledgerIndex[asset] = ledger
	}
	debt := token.NewLedger(debtSymbol, engineAddr)

	engine, err := vault.NewEngine(engineAddr, assets, feeds, tokens, debt)
	if err != nil {
		logger.Error("failed to construct engine", "err", err)
		os.Exit(1)
	}
	engine.SetState(vault.NewMemoryState())
	engine.SetQuoteMaxAge(engineCfg.QuoteMaxAge())
	engine.SetEmitter(logEmitter{logger: logger})

	srv := vaultserver.New(engine, feedIndex, ledgerIndex, debt, logger)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("vaultd listening", "addr", cfg.Listen, "assets", len(assets))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
	logger.Info("vaultd stopped")
}
