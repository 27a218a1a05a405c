package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

// Wallets reads wallet state and runs analyses. Implemented by
// session.Coordinator.
type Wallets interface {
	Positions(ctx context.Context, address string) ([]yield.Position, error)
	Balances(ctx context.Context, address string) ([]yield.Balance, error)
	Analyze(ctx context.Context, address string) (yield.Analysis, error)
}

func ListPositions(wl Wallets, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Query().Get("address")
		if address == "" {
			badRequest(w, "address required")
			return
		}
		positions, err := wl.Positions(r.Context(), address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if positions == nil {
			positions = []yield.Position{}
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

func ListBalances(wl Wallets, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Query().Get("address")
		if address == "" {
			badRequest(w, "address required")
			return
		}
		balances, err := wl.Balances(r.Context(), address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if balances == nil {
			balances = []yield.Balance{}
		}
		writeJSON(w, http.StatusOK, balances)
	}
}

func Analyze(wl Wallets, logger *slog.Logger) http.HandlerFunc {
	type request struct {
		Address string `json:"address"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(r, &req) {
			badRequest(w, "invalid request body")
			return
		}
		if req.Address == "" {
			badRequest(w, "address required")
			return
		}
		analysis, err := wl.Analyze(r.Context(), req.Address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	}
}
