// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// Status は承認の二値ステータスを表す（レガシー互換の簡易ステータス）。
type Status string

const (
	// StatusPending は未承認状態。
	StatusPending Status = "Pending"
	// StatusApproved は承認済み状態。
	StatusApproved Status = "Approved"
)

// WorkflowStatus はエントリーのライフサイクルを表す詳細ステータス。
// Statusとの整合性制約: Status==Approved ⇒ WorkflowStatus ∈ {Approved, Published}。
type WorkflowStatus string

const (
	// WorkflowDraft は下書き状態。
	WorkflowDraft WorkflowStatus = "Draft"
	// WorkflowReadyForReview はレビュー待ち状態。
	WorkflowReadyForReview WorkflowStatus = "Ready for Review"
	// WorkflowApproved は承認済み状態。
	WorkflowApproved WorkflowStatus = "Approved"
	// WorkflowPublished は公開済み状態。
	WorkflowPublished WorkflowStatus = "Published"
)

// AssetType はエントリーに紐づくアセットの種別を表す。
type AssetType string

const (
	// AssetVideo は動画アセット（scriptフィールドを使用）。
	AssetVideo AssetType = "Video"
	// AssetDesign はデザインアセット（designCopyフィールドを使用）。
	AssetDesign AssetType = "Design"
	// AssetCarousel はカルーセルアセット（carouselSlidesフィールドを使用）。
	AssetCarousel AssetType = "Carousel"
	// AssetNone はアセットなし。
	AssetNone AssetType = "No asset"
)

// SyncState はエントリーのローカル・サーバー間の同期状態を表す。
// 旧実装の_isNewフラグを置き換える明示的な状態機械。
type SyncState string

const (
	// SyncLocal はローカルでのみ存在し、サーバー側のcreateが未確認の状態。
	// 次回の永続化はcreateとして発行される。
	SyncLocal SyncState = "local"
	// SyncPending はサーバーへの永続化が進行中または失敗してキュー待ちの状態。
	SyncPending SyncState = "pending"
	// SyncSynced はサーバー側で確認済みの状態。以降の永続化はupdate。
	SyncSynced SyncState = "synced"
)

// PublishState はプラットフォームごとの公開処理の状態を表す。
type PublishState string

const (
	PublishPending    PublishState = "pending"
	PublishPublishing PublishState = "publishing"
	PublishPublished  PublishState = "published"
	PublishFailed     PublishState = "failed"
)

// PlatformPublishStatus はプラットフォーム1件分の公開状態を表す。
type PlatformPublishStatus struct {
	Status    PublishState `json:"status"`
	URL       string       `json:"url,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// Checklist はエントリーの進行チェックリスト。キーは固定スキーマに限定される。
type Checklist map[string]bool

// checklistKeys はチェックリストの固定キーセット。
// サニタイズ時にこのキーセットへ正規化され、欠損キーはfalse、未知キーは破棄される。
var checklistKeys = []string{
	"captionFinal",
	"assetReady",
	"linksVerified",
	"approvalRequested",
	"scheduledSlotConfirmed",
}

// ChecklistKeys はチェックリストの固定キーセットを返す。
func ChecklistKeys() []string {
	return append([]string(nil), checklistKeys...)
}

// Done は完了済みチェック項目の数を返す。
func (c Checklist) Done() int {
	done := 0
	for _, key := range checklistKeys {
		if c[key] {
			done++
		}
	}
	return done
}

// Comment はエントリーへのコメントを表す。
type Comment struct {
	ID        string   `json:"id"`
	Author    string   `json:"author"`
	Body      string   `json:"body"`
	CreatedAt string   `json:"createdAt"`
	Mentions  []string `json:"mentions,omitempty"`
}

// Entry は計画済みコンテンツ1件を表す。
// IDは生成後不変。StatusDetailは常に{Status, Checklist}から再計算され、
// 入力値として信頼されることはない。
type Entry struct {
	ID string `json:"id"`

	// スケジューリング
	Date             string `json:"date"`
	ApprovalDeadline string `json:"approvalDeadline,omitempty"`

	// コンテンツ
	Caption          string            `json:"caption"`
	PlatformCaptions map[string]string `json:"platformCaptions,omitempty"`
	AssetType        AssetType         `json:"assetType"`
	Script           string            `json:"script,omitempty"`
	DesignCopy       string            `json:"designCopy,omitempty"`
	CarouselSlides   []string          `json:"carouselSlides,omitempty"`
	Platforms        []string          `json:"platforms"`
	PreviewURL       string            `json:"previewUrl,omitempty"`
	FirstComment     string            `json:"firstComment,omitempty"`
	URL              string            `json:"url,omitempty"`

	// ワークフロー
	Status         Status         `json:"status"`
	WorkflowStatus WorkflowStatus `json:"workflowStatus"`
	StatusDetail   string         `json:"statusDetail"`
	Approvers      []string       `json:"approvers,omitempty"`
	Author         string         `json:"author,omitempty"`

	// コラボレーション
	Checklist Checklist `json:"checklist"`
	Comments  []Comment `json:"comments,omitempty"`

	// 公開
	PublishStatus map[string]PlatformPublishStatus `json:"publishStatus,omitempty"`
	PublishedAt   string                           `json:"publishedAt,omitempty"`

	// アナリティクス
	Analytics          map[string]map[string]string `json:"analytics,omitempty"`
	AnalyticsUpdatedAt string                       `json:"analyticsUpdatedAt,omitempty"`

	// ライフサイクル
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
	ApprovedAt string `json:"approvedAt,omitempty"`
	DeletedAt  string `json:"deletedAt,omitempty"`
	Evergreen  bool   `json:"evergreen,omitempty"`
	VariantOf  string `json:"variantOfId,omitempty"`

	// クライアント側のみの同期管理フィールド（サーバーへは送信されるが
	// サーバー側の意味を持たない）
	SyncState    SyncState `json:"syncState,omitempty"`
	SourceIdeaID string    `json:"sourceIdeaId,omitempty"`
}

// StatusDetail は{status, checklist}のみから導出される表示用ラベルを返す。
// 純粋関数であり、すべての書き込み境界で再計算される。
func StatusDetail(status Status, checklist Checklist) string {
	if status == StatusApproved {
		return "Approved"
	}
	total := len(checklistKeys)
	done := checklist.Done()
	if done == total {
		return "Ready for approval"
	}
	return fmt.Sprintf("In progress (%d/%d)", done, total)
}

// IsDeleted はソフト削除済みかを返す。
func (e *Entry) IsDeleted() bool {
	return e.DeletedAt != ""
}

// HasApprover は指定された名前が承認者リストに含まれるかを返す。
func (e *Entry) HasApprover(name string) bool {
	for _, a := range e.Approvers {
		if a == name {
			return true
		}
	}
	return false
}

// Describe はエントリーの表示用記述を返す。
// キャプションがあればそれを、なければ「{assetType} on {date}」形式を使用する。
func (e *Entry) Describe() string {
	if e.Caption != "" {
		return e.Caption
	}
	return string(e.AssetType) + " on " + e.Date
}

// Clone はエントリーの深いコピーを返す。
func (e *Entry) Clone() *Entry {
	dup := *e
	dup.PlatformCaptions = cloneStringMap(e.PlatformCaptions)
	dup.CarouselSlides = append([]string(nil), e.CarouselSlides...)
	dup.Platforms = append([]string(nil), e.Platforms...)
	dup.Approvers = append([]string(nil), e.Approvers...)
	if e.Checklist != nil {
		dup.Checklist = make(Checklist, len(e.Checklist))
		for k, v := range e.Checklist {
			dup.Checklist[k] = v
		}
	}
	if e.Comments != nil {
		dup.Comments = make([]Comment, len(e.Comments))
		for i, c := range e.Comments {
			dup.Comments[i] = c
			dup.Comments[i].Mentions = append([]string(nil), c.Mentions...)
		}
	}
	if e.PublishStatus != nil {
		dup.PublishStatus = make(map[string]PlatformPublishStatus, len(e.PublishStatus))
		for k, v := range e.PublishStatus {
			dup.PublishStatus[k] = v
		}
	}
	if e.Analytics != nil {
		dup.Analytics = make(map[string]map[string]string, len(e.Analytics))
		for k, v := range e.Analytics {
			dup.Analytics[k] = cloneStringMap(v)
		}
	}
	return &dup
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	dup := make(map[string]string, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}

// TimestampFormat はモデル全体で使用するISO 8601タイムスタンプ書式。
const TimestampFormat = time.RFC3339

// DateFormat はカレンダー日付の書式（ISO日付文字列）。
const DateFormat = "2006-01-02"

// Now は現在時刻をモデル標準のタイムスタンプ文字列で返す。
func Now(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
