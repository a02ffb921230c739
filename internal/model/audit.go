// Package model はドメインモデルを定義する。
package model

// AuditEvent は状態変更操作1件の監査レコードを表す。
// リングバッファ（最新500件）としてローカルに保持され、
// 到達可能であればリモートへもベストエフォートで転送される。
type AuditEvent struct {
	ID      string            `json:"id"`
	TS      string            `json:"ts"`
	User    string            `json:"user"`
	EntryID string            `json:"entryId,omitempty"`
	Action  string            `json:"action"`
	Meta    map[string]string `json:"meta,omitempty"`
}
