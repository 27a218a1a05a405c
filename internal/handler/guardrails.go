package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/web3-frozen/stable-yield/internal/guardrails"
	"github.com/web3-frozen/stable-yield/internal/session"
)

// PolicyReader resolves the effective policy of a wallet, falling back to the
// defaults. Implemented by session.Coordinator.
type PolicyReader interface {
	Guardrails(ctx context.Context, address string) (guardrails.Config, error)
}

// PolicyStore persists per-wallet policies. Implemented by store.Store.
type PolicyStore interface {
	SaveGuardrails(ctx context.Context, address string, cfg guardrails.Config) error
	DeleteGuardrails(ctx context.Context, address string) error
}

func GetGuardrails(pr PolicyReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, err := session.NormalizeAddress(r.URL.Query().Get("address"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		cfg, err := pr.Guardrails(r.Context(), address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// UpdateGuardrails applies a partial edit to the wallet's policy. Invalid
// edits are rejected and leave the stored policy untouched.
func UpdateGuardrails(pr PolicyReader, ps PolicyStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, err := session.NormalizeAddress(r.URL.Query().Get("address"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var u guardrails.Update
		if !decodeBody(r, &u) {
			badRequest(w, "invalid request body")
			return
		}
		current, err := pr.Guardrails(r.Context(), address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		next, err := current.Apply(u)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if err := ps.SaveGuardrails(r.Context(), address, next); err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("guardrails updated", "address", address)
		writeJSON(w, http.StatusOK, next)
	}
}

func ApplyPreset(pr PolicyReader, ps PolicyStore, logger *slog.Logger) http.HandlerFunc {
	type request struct {
		Address       string                   `json:"address"`
		RiskTolerance guardrails.RiskTolerance `json:"riskTolerance"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(r, &req) {
			badRequest(w, "invalid request body")
			return
		}
		address, err := session.NormalizeAddress(req.Address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		current, err := pr.Guardrails(r.Context(), address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		next, err := current.WithPreset(req.RiskTolerance)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if err := ps.SaveGuardrails(r.Context(), address, next); err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("guardrails preset applied", "address", address, "preset", req.RiskTolerance)
		writeJSON(w, http.StatusOK, next)
	}
}

// ResetGuardrails drops the saved policy so the wallet falls back to the
// defaults, and returns them.
func ResetGuardrails(pr PolicyReader, ps PolicyStore, logger *slog.Logger) http.HandlerFunc {
	type request struct {
		Address string `json:"address"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(r, &req) {
			badRequest(w, "invalid request body")
			return
		}
		address, err := session.NormalizeAddress(req.Address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if err := ps.DeleteGuardrails(r.Context(), address); err != nil {
			writeError(w, logger, err)
			return
		}
		cfg, err := pr.Guardrails(r.Context(), address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("guardrails reset", "address", address)
		writeJSON(w, http.StatusOK, cfg)
	}
}
