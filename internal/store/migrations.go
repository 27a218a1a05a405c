package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS guardrail_policies (
    address TEXT PRIMARY KEY,
    config JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analyses (
    id BIGSERIAL PRIMARY KEY,
    address TEXT NOT NULL,
    recommended_actions INT NOT NULL DEFAULT 0,
    net_yearly_gain_usd TEXT NOT NULL DEFAULT '0.00',
    result JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_analyses_address_created ON analyses (address, created_at DESC);

CREATE TABLE IF NOT EXISTS executions (
    id UUID PRIMARY KEY,
    address TEXT NOT NULL,
    intent_id TEXT NOT NULL,
    token TEXT NOT NULL,
    amount TEXT NOT NULL,
    status TEXT NOT NULL,
    withdraw_tx TEXT NOT NULL DEFAULT '',
    deposit_tx TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    record JSONB NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_executions_address_started ON executions (address, started_at DESC);

CREATE TABLE IF NOT EXISTS watchers (
    address TEXT NOT NULL,
    tg_chat_id BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (address, tg_chat_id)
);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
