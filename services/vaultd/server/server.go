// Package server exposes the vault engine over a small JSON HTTP surface:
// the seven mutating operations, the read-only query endpoints, and an
// operator endpoint for updating static price feeds.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zusd/crypto"
	"zusd/native/vault"
	"zusd/observability"
	"zusd/state/token"
)

// Server wires HTTP handlers to a vault engine instance.
type Server struct {
	engine     *vault.Engine
	feeds      map[vault.Asset]*vault.StaticSource
	collateral map[vault.Asset]*token.Ledger
	debt       *token.Ledger
	logger     *slog.Logger
	metrics    *observability.VaultMetrics
}

// New constructs a server. The feed, collateral, and debt ledgers are
// optional; when nil the corresponding operator endpoints report not found.
func New(engine *vault.Engine, feeds map[vault.Asset]*vault.StaticSource, collateral map[vault.Asset]*token.Ledger, debt *token.Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:     engine,
		feeds:      feeds,
		collateral: collateral,
		debt:       debt,
		logger:     logger,
		metrics:    observability.Vault(),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/v1/deposit", s.handleDeposit)
	r.Post("/v1/mint", s.handleMint)
	r.Post("/v1/burn", s.handleBurn)
	r.Post("/v1/redeem", s.handleRedeem)
	r.Post("/v1/deposit-mint", s.handleDepositAndMint)
	r.Post("/v1/redeem-burn", s.handleRedeemAndBurn)
	r.Post("/v1/liquidate", s.handleLiquidate)
	r.Get("/v1/position/{account}", s.handlePosition)
	r.Get("/v1/health/{account}", s.handleHealth)
	r.Get("/v1/assets", s.handleAssets)
	r.Get("/v1/params", s.handleParams)
	r.Put("/v1/price/{asset}", s.handleSetPrice)
	r.Post("/v1/faucet", s.handleFaucet)
	r.Post("/v1/approve-debt", s.handleApproveDebt)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type txRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset,omitempty"`
	Amount  string `json:"amount"`
}

type comboRequest struct {
	Account          string `json:"account"`
	Asset            string `json:"asset"`
	CollateralAmount string `json:"collateralAmount"`
	DebtAmount       string `json:"debtAmount"`
}

type liquidateRequest struct {
	Liquidator  string `json:"liquidator"`
	Account     string `json:"account"`
	Asset       string `json:"asset"`
	DebtToCover string `json:"debtToCover"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, "deposit", true, func(account crypto.Address, asset vault.Asset, amount *uint256.Int) error {
		return s.engine.Deposit(account, asset, amount)
	})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, "mint", false, func(account crypto.Address, _ vault.Asset, amount *uint256.Int) error {
		return s.engine.Mint(account, amount)
	})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, "burn", false, func(account crypto.Address, _ vault.Asset, amount *uint256.Int) error {
		return s.engine.Burn(account, amount)
	})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, "redeem", true, func(account crypto.Address, asset vault.Asset, amount *uint256.Int) error {
		return s.engine.Redeem(account, asset, amount)
	})
}

func (s *Server) simpleOp(w http.ResponseWriter, r *http.Request, name string, needsAsset bool, op func(crypto.Address, vault.Asset, *uint256.Int) error) {
	start := time.Now()
	var req txRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	account, err := crypto.DecodeAddress(strings.TrimSpace(req.Account))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid account: %v", err)})
		return
	}
	asset := vault.Asset(strings.ToUpper(strings.TrimSpace(req.Asset)))
	if needsAsset && asset == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "asset required"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	opErr := op(account, asset, amount)
	s.metrics.Observe(name, start, opErr)
	if opErr != nil {
		s.logger.Warn("operation rejected", "operation", name, "account", req.Account, "err", opErr)
		writeEngineError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDepositAndMint(w http.ResponseWriter, r *http.Request) {
	s.comboOp(w, r, "deposit_mint", s.engine.DepositAndMint)
}

func (s *Server) handleRedeemAndBurn(w http.ResponseWriter, r *http.Request) {
	s.comboOp(w, r, "redeem_burn", s.engine.RedeemAndBurn)
}

func (s *Server) comboOp(w http.ResponseWriter, r *http.Request, name string, op func(crypto.Address, vault.Asset, *uint256.Int, *uint256.Int) error) {
	start := time.Now()
	var req comboRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	account, err := crypto.DecodeAddress(strings.TrimSpace(req.Account))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid account: %v", err)})
		return
	}
	collateralAmount, err := parseAmount(req.CollateralAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	debtAmount, err := parseAmount(req.DebtAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	asset := vault.Asset(strings.ToUpper(strings.TrimSpace(req.Asset)))
	opErr := op(account, asset, collateralAmount, debtAmount)
	s.metrics.Observe(name, start, opErr)
	if opErr != nil {
		s.logger.Warn("operation rejected", "operation", name, "account", req.Account, "err", opErr)
		writeEngineError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req liquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	liquidator, err := crypto.DecodeAddress(strings.TrimSpace(req.Liquidator))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid liquidator: %v", err)})
		return
	}
	account, err := crypto.DecodeAddress(strings.TrimSpace(req.Account))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid account: %v", err)})
		return
	}
	debtToCover, err := parseAmount(req.DebtToCover)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	asset := vault.Asset(strings.ToUpper(strings.TrimSpace(req.Asset)))
	receipt, opErr := s.engine.Liquidate(liquidator, asset, account, debtToCover)
	s.metrics.Observe("liquidate", start, opErr)
	if opErr != nil {
		s.logger.Warn("liquidation rejected", "liquidator", req.Liquidator, "account", req.Account, "err", opErr)
		writeEngineError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":           "ok",
		"debtCovered":      receipt.DebtCovered.Dec(),
		"collateralSeized": receipt.CollateralSeized.Dec(),
		"startingHealth":   receipt.StartingHealth.Dec(),
		"endingHealth":     receipt.EndingHealth.Dec(),
	})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	account, err := crypto.DecodeAddress(chi.URLParam(r, "account"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid account: %v", err)})
		return
	}
	collateral := make(map[string]string)
	for _, asset := range s.engine.Assets() {
		balance, err := s.engine.CollateralOf(account, asset)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		collateral[string(asset)] = balance.Dec()
	}
	debt, err := s.engine.DebtOf(account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":    account.String(),
		"collateral": collateral,
		"debtMinted": debt.Dec(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	account, err := crypto.DecodeAddress(chi.URLParam(r, "account"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid account: %v", err)})
		return
	}
	health, err := s.engine.HealthFactor(account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	value, err := s.engine.TotalCollateralValueUSD(account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":            account.String(),
		"healthFactor":       health.Dec(),
		"collateralValueUSD": value.Dec(),
	})
}

func (s *Server) handleAssets(w http.ResponseWriter, _ *http.Request) {
	assets := s.engine.Assets()
	symbols := make([]string, 0, len(assets))
	for _, asset := range assets {
		symbols = append(symbols, string(asset))
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": symbols})
}

func (s *Server) handleParams(w http.ResponseWriter, _ *http.Request) {
	params := s.engine.Params()
	writeJSON(w, http.StatusOK, map[string]any{
		"precision":               params.Precision.Dec(),
		"liquidationThresholdPct": params.LiquidationThresholdPct,
		"liquidationBonusPct":     params.LiquidationBonusPct,
		"minHealthFactor":         params.MinHealthFactor.Dec(),
		"quoteMaxAgeSeconds":      int64(params.QuoteMaxAge.Seconds()),
	})
}

type priceRequest struct {
	Price    string `json:"price"`
	Decimals uint8  `json:"decimals"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	asset := vault.Asset(strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "asset"))))
	feed, ok := s.feeds[asset]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown price feed"})
		return
	}
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(req.Price), 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid price"})
		return
	}
	decimals := req.Decimals
	if decimals == 0 {
		decimals = 8
	}
	feed.Set(price, decimals, time.Now())
	s.logger.Info("price feed updated", "asset", string(asset), "price", price.String())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type faucetRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

// handleFaucet seeds a demo balance and pre-approves the engine so deposits
// can settle. Development tooling only.
func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	account, err := crypto.DecodeAddress(strings.TrimSpace(req.Account))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid account: %v", err)})
		return
	}
	asset := vault.Asset(strings.ToUpper(strings.TrimSpace(req.Asset)))
	ledger, ok := s.collateral[asset]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown asset"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ledger.Credit(account, amount)
	ledger.Approve(account, s.engine.Address(), amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type approveDebtRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// handleApproveDebt authorises the engine to pull debt tokens from the
// account for burn and liquidation flows.
func (s *Server) handleApproveDebt(w http.ResponseWriter, r *http.Request) {
	if s.debt == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "debt ledger not configured"})
		return
	}
	var req approveDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	account, err := crypto.DecodeAddress(strings.TrimSpace(req.Account))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid account: %v", err)})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.debt.Approve(account, s.engine.Address(), amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
