package security

import (
	"strings"
	"testing"
)

func TestSanitize_RemovesAllTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text passes through", "新商品の告知キャプション", "新商品の告知キャプション"},
		{"bold tag stripped", "<b>重要</b>なお知らせ", "重要なお知らせ"},
		{"script tag and content removed", "<script>alert(1)</script>安全", "安全"},
		{"nested tags stripped", "<div><p>本文</p></div>", "本文"},
		{"img with onerror removed", `<img src=x onerror=alert(1)>テキスト`, "テキスト"},
		{"anchor stripped keeps text", `<a href="https://example.com">リンク</a>`, "リンク"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_TrimsWhitespace(t *testing.T) {
	s := NewTextSanitizer()

	if got := s.Sanitize("  前後に空白  "); got != "前後に空白" {
		t.Errorf("Sanitize = %q, want trimmed", got)
	}
}

func TestSanitize_DecodesEntities(t *testing.T) {
	s := NewTextSanitizer()

	got := s.Sanitize("A &amp; B")
	if !strings.Contains(got, "&") || strings.Contains(got, "&amp;") {
		t.Errorf("Sanitize(A &amp; B) = %q, want decoded ampersand", got)
	}
}

// 冪等性: 一度サニタイズした出力を再度サニタイズしても変化しない。
func TestSanitize_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	inputs := []string{
		"<b>太字</b>と<i>斜体</i>",
		"プレーンテキスト",
		"A &amp; B &lt;tag&gt;",
	}

	for _, input := range inputs {
		once := s.Sanitize(input)
		twice := s.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize is not idempotent for %q: once=%q twice=%q", input, once, twice)
		}
	}
}
