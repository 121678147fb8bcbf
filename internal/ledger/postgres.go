package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

const schema = `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

const upsert = `
	INSERT INTO ledger_entries (key, value, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET
	  value      = EXCLUDED.value,
	  updated_at = EXCLUDED.updated_at`

// Postgres implementa o Store numa tabela chave-valor.
// PutAll roda todos os upserts numa única transação.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Migrate cria a tabela ledger_entries se ainda não existir
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger_entries: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM ledger_entries WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return v, nil
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	if _, err := p.db.ExecContext(ctx, upsert, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) PutAll(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// ordem estável de chaves evita deadlock entre transações concorrentes
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err = tx.ExecContext(ctx, upsert, k, entries[k]); err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping é usado pelo /healthz
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
