package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresKV はKVのPostgreSQL実装。
// 単一のplan_cacheテーブル（key主キー + jsonb値）を使用する。
type PostgresKV struct {
	db *sql.DB
}

// NewPostgresKV はPostgresKVの新しいインスタンスを生成する。
func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db}
}

// Load は指定キーの値を取得する。キーが存在しない場合は(nil, nil)を返す。
func (s *PostgresKV) Load(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM plan_cache WHERE key = $1`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キャッシュの読み込みに失敗: %w", err)
	}
	return value, nil
}

// Save は指定キーの値を全体上書きで保存する。
func (s *PostgresKV) Save(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO plan_cache (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗: %w", err)
	}
	return nil
}

// Delete は指定キーの値を削除する。
func (s *PostgresKV) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM plan_cache WHERE key = $1`

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("キャッシュの削除に失敗: %w", err)
	}
	return nil
}
