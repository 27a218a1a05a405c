package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"

	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

type Config struct {
	Port           string
	DatabaseURL    string
	TelegramToken  string
	FrontendOrigin string
	RedisURL       string
	RedisPassword  string

	YieldsAPIURL    string
	PriceAPIURL     string
	PositionsAPIURL string
	RPCURLs         map[yield.Chain][]string
	UseMockData     bool
	GuardrailsFile  string

	SettleDelay     time.Duration
	SimulatedTxTime time.Duration
	CatalogTTL      time.Duration
	PollInterval    time.Duration
	ProposalTimeout time.Duration
	DigestCron      string
}

func Load() Config {
	cfg := Config{
		Port:           envOr("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		FrontendOrigin: envOr("FRONTEND_ORIGIN", "*"),
		RedisURL:       envOr("REDIS_URL", "redis://redis-master.redis.svc.cluster.local:6379/0"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),

		YieldsAPIURL:    envOr("YIELDS_API_URL", "https://yields.llama.fi/pools"),
		PriceAPIURL:     envOr("PRICE_API_URL", "https://api.coingecko.com/api/v3"),
		PositionsAPIURL: os.Getenv("POSITIONS_API_URL"),
		RPCURLs:         rpcURLs(),
		GuardrailsFile:  os.Getenv("GUARDRAILS_FILE"),

		SettleDelay:     envDuration("SETTLE_DELAY", 3*time.Second),
		SimulatedTxTime: envDuration("SIMULATED_TX_TIME", 2*time.Second),
		CatalogTTL:      envDuration("CATALOG_TTL", 5*time.Minute),
		PollInterval:    envDuration("POLL_INTERVAL", 5*time.Minute),
		ProposalTimeout: envDuration("PROPOSAL_TIMEOUT", 2*time.Minute),
		DigestCron:      envOr("DIGEST_CRON", "0 0 * * *"),
	}
	cfg.UseMockData = envBool("USE_MOCK_DATA", cfg.PositionsAPIURL == "")

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

// rpcURLs reads RPC_URL_<CHAIN> for every supported chain, e.g.
// RPC_URL_ARBITRUM. Values are comma-separated; the first URL is primary.
func rpcURLs() map[yield.Chain][]string {
	out := make(map[yield.Chain][]string)
	for _, c := range protocol.Chains() {
		v := os.Getenv("RPC_URL_" + strings.ToUpper(c.String()))
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				out[c] = append(out[c], u)
			}
		}
	}
	return out
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &cfg.TelegramToken,
		"REDIS_PASSWORD":     &cfg.RedisPassword,
		"DATABASE_URL":       &cfg.DatabaseURL,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback.String())
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid bool, using default", "key", key, "value", v)
		return fallback
	}
	return b
}
