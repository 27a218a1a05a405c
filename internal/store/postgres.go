package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3-frozen/stable-yield/internal/guardrails"
	"github.com/web3-frozen/stable-yield/internal/mover"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Guardrail policies ---

// GetGuardrails returns the saved policy for address; ok is false when the
// wallet has none.
func (s *Store) GetGuardrails(ctx context.Context, address string) (guardrails.Config, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT config FROM guardrail_policies WHERE address = $1`, address).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return guardrails.Config{}, false, nil
	}
	if err != nil {
		return guardrails.Config{}, false, err
	}
	var cfg guardrails.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return guardrails.Config{}, false, fmt.Errorf("decode guardrails: %w", err)
	}
	return cfg, true, nil
}

func (s *Store) SaveGuardrails(ctx context.Context, address string, cfg guardrails.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode guardrails: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO guardrail_policies (address, config, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (address) DO UPDATE SET config = $2, updated_at = now()`,
		address, raw)
	return err
}

func (s *Store) DeleteGuardrails(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM guardrail_policies WHERE address = $1`, address)
	return err
}

// --- Analyses ---

func (s *Store) SaveAnalysis(ctx context.Context, address string, a yield.Analysis) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO analyses (address, recommended_actions, net_yearly_gain_usd, result)
		VALUES ($1, $2, $3, $4)`,
		address, a.RecommendedActions, a.NetYearlyGainUSD, raw)
	return err
}

// AnalysisSummary is one row of a wallet's analysis history.
type AnalysisSummary struct {
	ID                 int64     `json:"id"`
	RecommendedActions int       `json:"recommendedActions"`
	NetYearlyGainUSD   string    `json:"netYearlyGainUSD"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (s *Store) ListAnalyses(ctx context.Context, address string, limit int) ([]AnalysisSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, recommended_actions, net_yearly_gain_usd, created_at
		FROM analyses WHERE address = $1
		ORDER BY created_at DESC LIMIT $2`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisSummary
	for rows.Next() {
		var a AnalysisSummary
		if err := rows.Scan(&a.ID, &a.RecommendedActions, &a.NetYearlyGainUSD, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Executions ---

// SaveExecution inserts or updates an execution record by id.
func (s *Store) SaveExecution(ctx context.Context, e mover.Execution) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode execution: %w", err)
	}
	var withdrawTx, depositTx string
	if e.WithdrawTx != nil {
		withdrawTx = e.WithdrawTx.TxHash
	}
	if e.DepositTx != nil {
		depositTx = e.DepositTx.TxHash
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO executions (id, address, intent_id, token, amount, status, withdraw_tx, deposit_tx, error, record, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
			SET status = $6, withdraw_tx = $7, deposit_tx = $8, error = $9, record = $10, finished_at = $12`,
		e.ID, e.Address, e.IntentID, string(e.Token), e.Amount, string(e.Status),
		withdrawTx, depositTx, e.Error, raw, e.StartedAt, e.FinishedAt)
	return err
}

func (s *Store) ListExecutions(ctx context.Context, address string, limit int) ([]mover.Execution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record FROM executions WHERE address = $1
		ORDER BY started_at DESC LIMIT $2`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []mover.Execution{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e mover.Execution
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Watchers ---

// Watcher links a wallet to the Telegram chat that receives its alerts.
type Watcher struct {
	Address   string    `json:"address"`
	TgChatID  int64     `json:"tg_chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) AddWatcher(ctx context.Context, address string, chatID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watchers (address, tg_chat_id) VALUES ($1, $2)
		ON CONFLICT (address, tg_chat_id) DO NOTHING`, address, chatID)
	return err
}

// RemoveWatcher reports whether a watch existed.
func (s *Store) RemoveWatcher(ctx context.Context, address string, chatID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM watchers WHERE address = $1 AND tg_chat_id = $2`, address, chatID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListWatchers(ctx context.Context) ([]Watcher, error) {
	return s.queryWatchers(ctx, `SELECT address, tg_chat_id, created_at FROM watchers ORDER BY created_at`)
}

func (s *Store) ListWatchersByChat(ctx context.Context, chatID int64) ([]Watcher, error) {
	return s.queryWatchers(ctx,
		`SELECT address, tg_chat_id, created_at FROM watchers WHERE tg_chat_id = $1 ORDER BY created_at`, chatID)
}

func (s *Store) queryWatchers(ctx context.Context, sql string, args ...any) ([]Watcher, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Watcher
	for rows.Next() {
		var w Watcher
		if err := rows.Scan(&w.Address, &w.TgChatID, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
