package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/web3-frozen/stable-yield/internal/dedup"
	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/store"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const telegramAPI = "https://api.telegram.org/bot"

// WatchStore is the slice of the store the bot needs.
type WatchStore interface {
	AddWatcher(ctx context.Context, address string, chatID int64) error
	RemoveWatcher(ctx context.Context, address string, chatID int64) (bool, error)
	ListWatchersByChat(ctx context.Context, chatID int64) ([]store.Watcher, error)
}

// AlertResetter forgets sent alerts so a re-watched wallet is alerted again.
type AlertResetter interface {
	ClearByPattern(ctx context.Context, pattern string)
}

// Analyst runs an on-demand analysis for /analyze.
type Analyst interface {
	Analyze(ctx context.Context, address string) (yield.Analysis, error)
}

type Bot struct {
	token   string
	baseURL string
	store   WatchStore
	alerts  AlertResetter
	analyst Analyst
	logger  *slog.Logger
	client  *http.Client
	offset  int64
}

// NewBot creates a bot. alerts may be nil.
func NewBot(token string, s WatchStore, alerts AlertResetter, analyst Analyst, logger *slog.Logger) *Bot {
	return &Bot{
		token:   token,
		baseURL: telegramAPI,
		store:   s,
		alerts:  alerts,
		analyst: analyst,
		logger:  logger,
		client:  &http.Client{Timeout: 40 * time.Second},
	}
}

// SendMessage sends a text message to a Telegram chat.
func (b *Bot) SendMessage(chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, _ := json.Marshal(payload)

	resp, err := b.client.Post(
		b.baseURL+b.token+"/sendMessage",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, errResp.Description)
	}
	return nil
}

// Run starts the long-polling loop for incoming Telegram messages.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
			b.poll(ctx)
		}
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

func (b *Bot) poll(ctx context.Context) {
	url := fmt.Sprintf("%s%s/getUpdates?offset=%d&timeout=30", b.baseURL, b.token, b.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		b.logger.Error("create poll request", "error", err)
		return
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("poll updates", "error", err)
		time.Sleep(5 * time.Second)
		return
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		b.logger.Error("decode updates", "error", err)
		return
	}

	for _, u := range result.Result {
		b.offset = u.UpdateID + 1
		if u.Message == nil {
			continue
		}
		b.handle(ctx, u.Message.Chat.ID, u.Message.Text)
	}
}

func (b *Bot) handle(ctx context.Context, chatID int64, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/start", "/help":
		b.handleHelp(chatID)
	case "/status":
		b.handleStatus(ctx, chatID)
	case "/watch":
		b.handleWatch(ctx, chatID, arg)
	case "/unwatch":
		b.handleUnwatch(ctx, chatID, arg)
	case "/analyze":
		b.handleAnalyze(ctx, chatID, arg)
	default:
		b.reply(chatID, "Unknown command. Send /help for available commands.")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		b.logger.Error("send reply failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleHelp(chatID int64) {
	msg := "🤖 <b>Stable Yield Bot</b>\n\n" +
		"Commands:\n" +
		"/watch &lt;address&gt; — Alert me when a wallet has a worthwhile rebalance\n" +
		"/unwatch &lt;address&gt; — Stop alerts for a wallet\n" +
		"/analyze &lt;address&gt; — Run an analysis now\n" +
		"/status — List watched wallets\n" +
		"/help — Show this message"
	b.reply(chatID, msg)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	watchers, err := b.store.ListWatchersByChat(ctx, chatID)
	if err != nil {
		b.logger.Error("list watchers", "chat_id", chatID, "error", err)
		b.reply(chatID, "Error fetching watched wallets.")
		return
	}
	if len(watchers) == 0 {
		b.reply(chatID, "You are not watching any wallets. Send /watch &lt;address&gt; to start.")
		return
	}
	var sb strings.Builder
	sb.WriteString("📋 Watched wallets:\n")
	for _, w := range watchers {
		fmt.Fprintf(&sb, "• <code>%s</code>\n", w.Address)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, arg string) {
	address, ok := parseAddress(arg)
	if !ok {
		b.reply(chatID, "Usage: /watch &lt;0x address&gt;")
		return
	}
	if err := b.store.AddWatcher(ctx, address, chatID); err != nil {
		b.logger.Error("add watcher", "chat_id", chatID, "address", address, "error", err)
		b.reply(chatID, "❌ Could not watch that wallet. Please try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Watching <code>%s</code>. You will get an alert when a rebalance passes your guardrails.", address))
}

func (b *Bot) handleUnwatch(ctx context.Context, chatID int64, arg string) {
	address, ok := parseAddress(arg)
	if !ok {
		b.reply(chatID, "Usage: /unwatch &lt;0x address&gt;")
		return
	}
	removed, err := b.store.RemoveWatcher(ctx, address, chatID)
	if err != nil {
		b.logger.Error("remove watcher", "chat_id", chatID, "address", address, "error", err)
		b.reply(chatID, "❌ Could not update your watch list. Please try again.")
		return
	}
	if !removed {
		b.reply(chatID, "You were not watching that wallet.")
		return
	}
	if b.alerts != nil {
		b.alerts.ClearByPattern(ctx, dedup.WalletPattern(address))
	}
	b.reply(chatID, fmt.Sprintf("Stopped watching <code>%s</code>.", address))
}

func (b *Bot) handleAnalyze(ctx context.Context, chatID int64, arg string) {
	address, ok := parseAddress(arg)
	if !ok {
		b.reply(chatID, "Usage: /analyze &lt;0x address&gt;")
		return
	}
	if b.analyst == nil {
		b.reply(chatID, "Analysis is not available right now.")
		return
	}
	a, err := b.analyst.Analyze(ctx, address)
	if err != nil {
		b.logger.Warn("bot analysis failed", "address", address, "error", err)
		b.reply(chatID, "❌ "+yield.UserMessage(err))
		return
	}
	b.reply(chatID, FormatDigest(address, a))
}

func parseAddress(s string) (string, bool) {
	a := strings.ToLower(strings.TrimSpace(s))
	return a, protocol.IsAddress(a)
}
