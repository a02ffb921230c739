package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// TrashSweeper インターフェースに対するモック実装
type mockSweeper struct {
	called    bool
	retention time.Duration
	purged    int
}

func (m *mockSweeper) SweepTrash(ctx context.Context, retention time.Duration) int {
	m.called = true
	m.retention = retention
	return m.purged
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewSweepJob_SetsDefaultRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	job := NewSweepJob(&mockSweeper{}, newTestLogger(&buf))

	if job.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", job.RetentionDays)
	}
}

func TestSweepJob_Run_PassesRetentionToSweeper(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{purged: 3}
	job := NewSweepJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !mock.called {
		t.Fatal("SweepTrash should have been called")
	}
	if want := 30 * 24 * time.Hour; mock.retention != want {
		t.Errorf("retention = %v, want %v", mock.retention, want)
	}
}

func TestSweepJob_Run_RespectsCustomRetention(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{}
	job := NewSweepJob(mock, newTestLogger(&buf))
	job.RetentionDays = 7

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if want := 7 * 24 * time.Hour; mock.retention != want {
		t.Errorf("retention = %v, want %v", mock.retention, want)
	}
}

func TestSweepJob_Run_LogsPurgedCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{purged: 5}
	job := NewSweepJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["purged_count"].(float64); ok && int(count) == 5 {
			found = true
		}
	}
	if !found {
		t.Error("expected log entry with purged_count=5")
	}
}

func TestSweepJob_Run_IdempotentWhenNothingToPurge(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{purged: 0}
	job := NewSweepJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run returned error: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("second Run returned error: %v", err)
	}
}
