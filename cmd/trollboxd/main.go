package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"trollbox/internal/config"
	"trollbox/internal/database"
	"trollbox/internal/history"
	"trollbox/internal/hub"
	"trollbox/internal/identity"
	"trollbox/internal/referral"
	"trollbox/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/trollbox.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting trollboxd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	registry := identity.NewRegistry()
	ledger := referral.NewLedger(logger)

	if _, err := os.Stat(cfg.Referral.LedgerPath); err == nil {
		if err := ledger.LoadFile(cfg.Referral.LedgerPath); err != nil {
			logger.Error("failed to load referral ledger", "path", cfg.Referral.LedgerPath, "error", err)
			os.Exit(1)
		}
		stats := ledger.Stats()
		logger.Info("referral ledger loaded",
			"path", cfg.Referral.LedgerPath,
			"referrers", stats.Referrers,
			"referred", stats.Referred,
		)
	}

	h := hub.New(hub.Config{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		SendBuffer:       cfg.Chat.SendBuffer,
		WriteTimeout:     cfg.Chat.WriteTimeout,
		PongTimeout:      cfg.Chat.PongTimeout,
	}, registry, ledger, logger)

	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store, err := history.NewStore(ctx, pool)
		if err != nil {
			logger.Error("failed to init trade history store", "error", err)
			os.Exit(1)
		}
		h.SetAlertSink(store)
		logger.Info("trade history persistence enabled")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"connections": h.ConnectionCount(),
			"version":     version.Version,
		})
	})

	public := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var alerts *http.Server
	if cfg.Server.AlertAddr != "" {
		alertMux := http.NewServeMux()
		alertMux.HandleFunc("/alert", alertHandler(h, logger))
		alerts = &http.Server{Addr: cfg.Server.AlertAddr, Handler: alertMux}

		g.Go(func() error {
			logger.Info("alert endpoint listening", "addr", cfg.Server.AlertAddr)
			if err := alerts.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// Periodic ledger snapshots
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Referral.SavePeriod)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := ledger.SaveFile(cfg.Referral.LedgerPath); err != nil {
					logger.Warn("ledger snapshot failed", "error", err)
				}
			}
		}
	})

	// Shutdown sequencing
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		public.Shutdown(shutdownCtx)
		if alerts != nil {
			alerts.Shutdown(shutdownCtx)
		}
		h.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
	}

	if err := ledger.SaveFile(cfg.Referral.LedgerPath); err != nil {
		logger.Error("final ledger save failed", "error", err)
	} else {
		logger.Info("referral ledger saved", "path", cfg.Referral.LedgerPath)
	}

	logger.Info("trollboxd stopped")
}

// alertRequest is the loopback trade-alert injection payload.
type alertRequest struct {
	Action  string          `json:"action"`
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address"`
	TxHash  string          `json:"txHash"`
}

func alertHandler(h *hub.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req alertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Action != "buy" && req.Action != "sell" {
			http.Error(w, `action must be "buy" or "sell"`, http.StatusBadRequest)
			return
		}
		if req.Amount.IsNegative() {
			http.Error(w, "amount must be non-negative", http.StatusBadRequest)
			return
		}

		alert := h.PostTradeAlert(req.Action, req.Amount, req.Address, req.TxHash)
		logger.Debug("trade alert posted", "id", alert.ID, "action", req.Action)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(alert)
	}
}
