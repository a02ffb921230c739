package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10*time.Second, 5*1024*1024)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
}

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout, 5*1024*1024)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はSafeClientにカスタムTransportが設定されて
// いることをテストする。safeurlはnet.DialerのControlフックでIPアドレス検証を
// 行うため、Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewSafeClientHasTransport(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second, 5*1024*1024)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はSafeClientがループバックへのリクエストを
// ブロックすることをテストする。httptestサーバーは127.0.0.1で起動されるため、
// safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second, 5*1024*1024)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewSSRFGuard()

	publicURLs := []string{
		"https://example.com",
		"https://hooks.example.com/teams/abc123",
		"https://blog.example.org/feed.xml",
		"http://news.example.net/rss",
	}

	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_BlockedTargets(t *testing.T) {
	guard := NewSSRFGuard()

	blockedURLs := []string{
		// プライベートIPアドレス
		"http://10.0.0.1/webhook",
		"http://172.16.0.1/webhook",
		"http://192.168.1.100/webhook",
		// ループバック
		"http://127.0.0.1/webhook",
		"http://localhost/webhook",
		// クラウドメタデータIP
		"http://169.254.169.254/latest/meta-data/",
		// IPv6ループバック
		"http://[::1]/webhook",
	}

	for _, u := range blockedURLs {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have been rejected", u)
			}
		})
	}
}

func TestValidateURL_DisallowedSchemes(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []string{
		"ftp://example.com/file",
		"file:///etc/passwd",
		"gopher://example.com",
		"",
	}

	for _, u := range tests {
		if err := guard.ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) should have been rejected", u)
		}
	}
}
