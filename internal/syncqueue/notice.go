package syncqueue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultNoticeTTL は通知バナーが自動で消えるまでの時間。
const DefaultNoticeTTL = 4 * time.Second

// Notice は一時的に表示される通知バナー。TTL経過後に自動で消える。
type Notice struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NoticeCenter は通知バナーを保持し、TTL経過後に自動破棄する。
type NoticeCenter struct {
	mu      sync.Mutex
	notices []*Notice
	ttl     time.Duration
	now     func() time.Time
}

// NoticeOption はNoticeCenterの挙動を調整するオプション。
type NoticeOption func(*NoticeCenter)

// WithNoticeTTL は自動破棄までの時間を変更する。
func WithNoticeTTL(ttl time.Duration) NoticeOption {
	return func(nc *NoticeCenter) { nc.ttl = ttl }
}

// NewNoticeCenter は新しいNoticeCenterを生成する。
func NewNoticeCenter(opts ...NoticeOption) *NoticeCenter {
	nc := &NoticeCenter{
		ttl: DefaultNoticeTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(nc)
	}
	return nc
}

// Add は通知バナーを追加し、そのIDを返す。TTL経過後に自動で消える。
func (nc *NoticeCenter) Add(message string) string {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	id := uuid.NewString()
	nc.notices = append(nc.notices, &Notice{
		ID:        id,
		Message:   message,
		CreatedAt: nc.now(),
	})

	time.AfterFunc(nc.ttl, func() { nc.Dismiss(id) })
	return id
}

// Dismiss は指定された通知バナーを取り除く。存在しなければ何もしない。
func (nc *NoticeCenter) Dismiss(id string) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	for i, n := range nc.notices {
		if n.ID == id {
			nc.notices = append(nc.notices[:i], nc.notices[i+1:]...)
			return
		}
	}
}

// Notices は現在表示中の通知バナーのスナップショットを返す。
func (nc *NoticeCenter) Notices() []*Notice {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	out := make([]*Notice, len(nc.notices))
	for i, n := range nc.notices {
		copied := *n
		out[i] = &copied
	}
	return out
}
