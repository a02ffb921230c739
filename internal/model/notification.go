// Package model はドメインモデルを定義する。
package model

// NotificationType は通知の種別を表す。
type NotificationType string

const (
	// NotificationApprovalAssigned は承認者として指名されたことを示す通知。
	NotificationApprovalAssigned NotificationType = "approval-assigned"
	// NotificationMention はコメント内でメンションされたことを示す通知。
	NotificationMention NotificationType = "mention"
	// NotificationComment はコメント活動を示す通知。
	NotificationComment NotificationType = "comment"
	// NotificationApprovalUpdate は承認対象エントリーの重要な変更を示す通知。
	NotificationApprovalUpdate NotificationType = "approval-update"
)

// Notification はユーザー1人宛ての通知レコードを表す。
// Keyは(type, entryId, user, meta.commentId)の決定的な合成キーであり、
// 同一Keyの通知は重複挿入されない。Readはfalse→trueの一方向のみ遷移する。
type Notification struct {
	ID        string            `json:"id"`
	EntryID   string            `json:"entryId"`
	User      string            `json:"user"`
	Type      NotificationType  `json:"type"`
	Message   string            `json:"message"`
	CreatedAt string            `json:"createdAt"`
	Read      bool              `json:"read"`
	Meta      map[string]string `json:"meta,omitempty"`
	Key       string            `json:"key"`
}

// NotifyPayload はサーバーサイド配信（メール/Webhook）のペイロードを表す。
// ベストエフォート配信であり、失敗はアプリ内通知に影響しない。
type NotifyPayload struct {
	To              []string `json:"to,omitempty"`
	Approvers       []string `json:"approvers,omitempty"`
	Subject         string   `json:"subject"`
	Text            string   `json:"text"`
	HTML            string   `json:"html,omitempty"`
	TeamsWebhookURL string   `json:"teamsWebhookUrl,omitempty"`
}
