package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/web3-frozen/stable-yield/internal/dedup"
	"github.com/web3-frozen/stable-yield/internal/mover"
	"github.com/web3-frozen/stable-yield/internal/session"
	"github.com/web3-frozen/stable-yield/internal/store"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// parseLimit reads ?limit, clamped to ceiling. ok is false for a malformed or
// non-positive value.
func parseLimit(r *http.Request, def, ceiling int) (limit int, ok bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, ceiling), true
}

type ExecutionLister interface {
	ListExecutions(ctx context.Context, address string, limit int) ([]mover.Execution, error)
}

func ListExecutions(el ExecutionLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, err := session.NormalizeAddress(r.URL.Query().Get("address"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		limit, ok := parseLimit(r, defaultHistoryLimit, maxHistoryLimit)
		if !ok {
			badRequest(w, "invalid limit")
			return
		}
		execs, err := el.ListExecutions(r.Context(), address, limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if execs == nil {
			execs = []mover.Execution{}
		}
		writeJSON(w, http.StatusOK, execs)
	}
}

// AnalysisLister reads a wallet's stored analysis history. Implemented by
// store.Store.
type AnalysisLister interface {
	ListAnalyses(ctx context.Context, address string, limit int) ([]store.AnalysisSummary, error)
}

func ListAnalyses(al AnalysisLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, err := session.NormalizeAddress(r.URL.Query().Get("address"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		limit, ok := parseLimit(r, defaultHistoryLimit, maxHistoryLimit)
		if !ok {
			badRequest(w, "invalid limit")
			return
		}
		rows, err := al.ListAnalyses(r.Context(), address, limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if rows == nil {
			rows = []store.AnalysisSummary{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// WatchStore manages the address watch list. Implemented by store.Store.
type WatchStore interface {
	AddWatcher(ctx context.Context, address string, chatID int64) error
	RemoveWatcher(ctx context.Context, address string, chatID int64) (bool, error)
}

// AlertResetter forgets which alerts were already sent. Implemented by
// dedup.Deduplicator.
type AlertResetter interface {
	ClearByPattern(ctx context.Context, pattern string)
}

type watchRequest struct {
	Address  string `json:"address"`
	TgChatID int64  `json:"tgChatId"`
}

func (req watchRequest) validate() (string, error) {
	if req.TgChatID == 0 {
		return "", yield.NewValidationError("tgChatId required", nil)
	}
	return session.NormalizeAddress(req.Address)
}

func Watch(ws WatchStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req watchRequest
		if !decodeBody(r, &req) {
			badRequest(w, "invalid request body")
			return
		}
		address, err := req.validate()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if err := ws.AddWatcher(r.Context(), address, req.TgChatID); err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("watch added", "address", address, "tg_chat_id", req.TgChatID)
		writeJSON(w, http.StatusCreated, map[string]any{"address": address, "tgChatId": req.TgChatID})
	}
}

// Unwatch removes a watch and clears the address's sent-intent markers, so a
// later watch is alerted again about moves that are still open.
func Unwatch(ws WatchStore, alerts AlertResetter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req watchRequest
		if !decodeBody(r, &req) {
			badRequest(w, "invalid request body")
			return
		}
		address, err := req.validate()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		removed, err := ws.RemoveWatcher(r.Context(), address, req.TgChatID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if !removed {
			writeError(w, logger, yield.NewNotFoundError("watch not found"))
			return
		}
		alerts.ClearByPattern(r.Context(), dedup.WalletPattern(address))
		logger.Info("watch removed", "address", address, "tg_chat_id", req.TgChatID)
		w.WriteHeader(http.StatusNoContent)
	}
}
