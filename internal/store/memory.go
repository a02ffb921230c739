package store

import (
	"context"
	"sync"
)

// MemoryKV はKVのインメモリ実装。テストおよびDBなし起動用。
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryKV はMemoryKVの新しいインスタンスを生成する。
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

// Load は指定キーの値を取得する。キーが存在しない場合は(nil, nil)を返す。
func (s *MemoryKV) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

// Save は指定キーの値を全体上書きで保存する。
func (s *MemoryKV) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete は指定キーの値を削除する。
func (s *MemoryKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
