package entry

import (
	"github.com/hitoshi/planboard/internal/model"
)

// Patch はエントリー更新で正当に変更可能なフィールドのみを列挙した
// 型付きパッチ。nilのフィールドは「変更なし」を意味する。
// 任意オブジェクトのマージではなくこの型を経由することで、
// 操作ごとに変更可能なフィールドを明示し、意図しないフィールドの
// 混入を防ぐ。
type Patch struct {
	Date             *string
	ApprovalDeadline *string
	Caption          *string
	PlatformCaptions map[string]string
	AssetType        *model.AssetType
	Script           *string
	DesignCopy       *string
	CarouselSlides   []string
	Platforms        []string
	PreviewURL       *string
	FirstComment     *string
	URL              *string
	WorkflowStatus   *model.WorkflowStatus
	Approvers        []string
	Checklist        model.Checklist
	Analytics        map[string]map[string]string
	Evergreen        *bool
}

// Fields はパッチに含まれるフィールド名（JSONフィールド名）を返す。
// 承認者への再通知判定に使用される。
func (p Patch) Fields() []string {
	var fields []string
	add := func(name string, set bool) {
		if set {
			fields = append(fields, name)
		}
	}
	add("date", p.Date != nil)
	add("approvalDeadline", p.ApprovalDeadline != nil)
	add("caption", p.Caption != nil)
	add("platformCaptions", p.PlatformCaptions != nil)
	add("assetType", p.AssetType != nil)
	add("script", p.Script != nil)
	add("designCopy", p.DesignCopy != nil)
	add("carouselSlides", p.CarouselSlides != nil)
	add("platforms", p.Platforms != nil)
	add("previewUrl", p.PreviewURL != nil)
	add("firstComment", p.FirstComment != nil)
	add("url", p.URL != nil)
	add("workflowStatus", p.WorkflowStatus != nil)
	add("approvers", p.Approvers != nil)
	add("checklist", p.Checklist != nil)
	add("analytics", p.Analytics != nil)
	add("evergreen", p.Evergreen != nil)
	return fields
}

// Apply はパッチをエントリーへ適用する。呼び出し後にサニタイザーで
// 再正規化されることを前提とし、ここでは値の検証は行わない。
func (p Patch) Apply(e *model.Entry) {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.ApprovalDeadline != nil {
		e.ApprovalDeadline = *p.ApprovalDeadline
	}
	if p.Caption != nil {
		e.Caption = *p.Caption
	}
	if p.PlatformCaptions != nil {
		e.PlatformCaptions = p.PlatformCaptions
	}
	if p.AssetType != nil {
		e.AssetType = *p.AssetType
	}
	if p.Script != nil {
		e.Script = *p.Script
	}
	if p.DesignCopy != nil {
		e.DesignCopy = *p.DesignCopy
	}
	if p.CarouselSlides != nil {
		e.CarouselSlides = p.CarouselSlides
	}
	if p.Platforms != nil {
		e.Platforms = p.Platforms
	}
	if p.PreviewURL != nil {
		e.PreviewURL = *p.PreviewURL
	}
	if p.FirstComment != nil {
		e.FirstComment = *p.FirstComment
	}
	if p.URL != nil {
		e.URL = *p.URL
	}
	if p.WorkflowStatus != nil {
		e.WorkflowStatus = *p.WorkflowStatus
	}
	if p.Approvers != nil {
		e.Approvers = p.Approvers
	}
	if p.Checklist != nil {
		e.Checklist = p.Checklist
	}
	if p.Analytics != nil {
		e.Analytics = p.Analytics
	}
	if p.Evergreen != nil {
		e.Evergreen = *p.Evergreen
	}
}

// remotePayload は適用・再正規化済みのエントリーから、パッチに含まれる
// フィールドと導出フィールドのみを抜き出したサーバー向け部分更新
// ペイロードを作る。
func (p Patch) remotePayload(e *model.Entry) map[string]any {
	payload := map[string]any{
		"updatedAt":    e.UpdatedAt,
		"statusDetail": e.StatusDetail,
	}
	if p.Date != nil {
		payload["date"] = e.Date
	}
	if p.ApprovalDeadline != nil {
		payload["approvalDeadline"] = e.ApprovalDeadline
	}
	if p.Caption != nil {
		payload["caption"] = e.Caption
	}
	if p.PlatformCaptions != nil {
		payload["platformCaptions"] = e.PlatformCaptions
	}
	if p.AssetType != nil {
		payload["assetType"] = e.AssetType
		payload["script"] = e.Script
		payload["designCopy"] = e.DesignCopy
		payload["carouselSlides"] = e.CarouselSlides
	}
	if p.Script != nil {
		payload["script"] = e.Script
	}
	if p.DesignCopy != nil {
		payload["designCopy"] = e.DesignCopy
	}
	if p.CarouselSlides != nil {
		payload["carouselSlides"] = e.CarouselSlides
	}
	if p.Platforms != nil {
		payload["platforms"] = e.Platforms
	}
	if p.PreviewURL != nil {
		payload["previewUrl"] = e.PreviewURL
	}
	if p.FirstComment != nil {
		payload["firstComment"] = e.FirstComment
	}
	if p.URL != nil {
		payload["url"] = e.URL
	}
	if p.WorkflowStatus != nil {
		payload["workflowStatus"] = e.WorkflowStatus
		payload["status"] = e.Status
	}
	if p.Approvers != nil {
		payload["approvers"] = e.Approvers
	}
	if p.Checklist != nil {
		payload["checklist"] = e.Checklist
	}
	if p.Analytics != nil {
		payload["analytics"] = e.Analytics
		payload["analyticsUpdatedAt"] = e.AnalyticsUpdatedAt
	}
	if p.Evergreen != nil {
		payload["evergreen"] = e.Evergreen
	}
	return payload
}

// addedApprovers は更新前後の承認者リストを比較し、新たに追加された
// 承認者のみを返す。既存の承認者は無関係な編集のたびに再通知されない。
func addedApprovers(before, after []string) []string {
	known := make(map[string]bool, len(before))
	for _, name := range before {
		known[name] = true
	}
	var added []string
	for _, name := range after {
		if !known[name] {
			added = append(added, name)
		}
	}
	return added
}
