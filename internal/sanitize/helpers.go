// Package sanitize はエンティティの正規化機能を提供する。
//
// ストレージ、リモートバックエンド、ユーザーフォームのいずれから来た
// オブジェクトも、全ての読み書き境界でここを通過して正規のエンティティへ
// 変換される。不正な永続データやリモートデータがメモリ上の不変条件を
// 壊すことはない。全ての関数はパニックせず、冪等である。
package sanitize

import (
	"fmt"
	"strings"
)

// asString は任意の値を文字列へ変換する。文字列以外の数値・真偽値は
// 表示形式へ変換し、それ以外の型は空文字列とする。
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	case int:
		return fmt.Sprintf("%d", s)
	case int64:
		return fmt.Sprintf("%d", s)
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// asBool は任意の値を真偽値へ変換する。真偽値以外はfalseとする。
func asBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// asStringSlice は任意の値を文字列スライスへ変換する。
// 空要素・非文字列要素は除去される。
func asStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		s := strings.TrimSpace(asString(item))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// asMap は任意の値をmap[string]anyへ変換する。マップ以外はnilとする。
func asMap(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// asStringMap は任意の値をmap[string]stringへ変換する。
// 空キー・空値のペアは除去される。
func asStringMap(v any) map[string]string {
	raw := asMap(v)
	if raw == nil {
		return nil
	}
	out := make(map[string]string)
	for k, val := range raw {
		key := strings.TrimSpace(k)
		value := strings.TrimSpace(asString(val))
		if key != "" && value != "" {
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// dedupeStrings は順序を保持したまま重複と空文字列を除去する。
func dedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
