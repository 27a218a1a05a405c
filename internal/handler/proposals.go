package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/stable-yield/internal/session"
)

// Proposals is the confirmation flow for approved intents. Implemented by
// session.Coordinator.
type Proposals interface {
	Propose(ctx context.Context, address, intentID string) (session.Proposal, error)
	Decide(ctx context.Context, id string, approve bool) (session.Proposal, error)
	Get(id string) (session.Proposal, error)
	Await(ctx context.Context, id string) (session.Decision, error)
}

// maxProposalWait keeps a long poll inside the server's write timeout.
const maxProposalWait = 25 * time.Second

func CreateProposal(p Proposals, logger *slog.Logger) http.HandlerFunc {
	type request struct {
		Address  string `json:"address"`
		IntentID string `json:"intentId"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(r, &req) {
			badRequest(w, "invalid request body")
			return
		}
		if req.Address == "" || req.IntentID == "" {
			badRequest(w, "address and intentId required")
			return
		}
		address, err := session.NormalizeAddress(req.Address)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		prop, err := p.Propose(r.Context(), address, req.IntentID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, prop)
	}
}

// DecideProposal approves or rejects a pending proposal. An approved
// proposal whose execution failed still answers 200; the failure is on the
// attached execution record.
func DecideProposal(p Proposals, logger *slog.Logger) http.HandlerFunc {
	type request struct {
		Approve *bool `json:"approve"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(r, &req) || req.Approve == nil {
			badRequest(w, "approve required")
			return
		}
		prop, err := p.Decide(r.Context(), chi.URLParam(r, "id"), *req.Approve)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, prop)
	}
}

// GetProposal returns a proposal. With ?wait=<duration> it first blocks until
// the proposal is decided or expires, up to maxProposalWait, and then answers
// with whatever state it is in.
func GetProposal(p Proposals, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if v := r.URL.Query().Get("wait"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				badRequest(w, "invalid wait")
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), min(d, maxProposalWait))
			defer cancel()
			if _, err := p.Await(ctx, id); err != nil && ctx.Err() == nil {
				writeError(w, logger, err)
				return
			}
		}
		prop, err := p.Get(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, prop)
	}
}
