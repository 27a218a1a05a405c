package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/web3-frozen/stable-yield/internal/engine"
	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	defaultOpportunityLimit = 50
	maxOpportunityLimit     = 200
)

type OpportunityLister interface {
	Opportunities(ctx context.Context) []yield.Opportunity
}

// ListOpportunities serves the ranked catalog, optionally filtered by token
// and chain. Chains are accepted by name or numeric id.
func ListOpportunities(cat OpportunityLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var token yield.Token
		if v := q.Get("token"); v != "" {
			token = yield.Token(strings.ToUpper(v))
			if !isSupportedToken(token) {
				badRequest(w, "unsupported token")
				return
			}
		}

		var chain yield.Chain
		if v := q.Get("chain"); v != "" {
			c, ok := parseChain(v)
			if !ok {
				badRequest(w, "unsupported chain")
				return
			}
			chain = c
		}

		limit := defaultOpportunityLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				badRequest(w, "invalid limit")
				return
			}
			limit = min(n, maxOpportunityLimit)
		}

		all := cat.Opportunities(r.Context())
		filtered := make([]yield.Opportunity, 0, len(all))
		for _, o := range all {
			if token != "" && o.Token != token {
				continue
			}
			if chain != 0 && o.Chain != chain {
				continue
			}
			filtered = append(filtered, o)
		}
		ranked := engine.Rank(filtered)
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
		logger.Debug("opportunities served", "count", len(ranked), "token", token, "chain", chain.String())
		writeJSON(w, http.StatusOK, ranked)
	}
}

func isSupportedToken(t yield.Token) bool {
	for _, s := range protocol.Stablecoins() {
		if s == t {
			return true
		}
	}
	return false
}

func parseChain(v string) (yield.Chain, bool) {
	if id, err := strconv.ParseInt(v, 10, 64); err == nil {
		for _, c := range protocol.Chains() {
			if int64(c) == id {
				return c, true
			}
		}
		return 0, false
	}
	return yield.ParseChain(v)
}
