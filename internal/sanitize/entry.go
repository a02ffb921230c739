package sanitize

import (
	"strings"
	"time"

	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/security"
)

// Sanitizer はエンティティ正規化サービス。
// 文字列フィールドのHTML除去にはsecurityパッケージのテキストサニタイザーを使用する。
type Sanitizer struct {
	text security.TextSanitizerService
}

// NewSanitizer はSanitizerの新しいインスタンスを生成する。
func NewSanitizer(text security.TextSanitizerService) *Sanitizer {
	return &Sanitizer{text: text}
}

// Entry は任意の入力から正規のエントリーを構築する。
// 入力がオブジェクト（map[string]any、*model.Entry、model.Entry）でない
// 場合のみnilを返す。各フィールドは互いに独立にデフォルト化されるため、
// 1フィールドの破損が他フィールドへ波及することはない。
func (s *Sanitizer) Entry(raw any) *model.Entry {
	switch v := raw.(type) {
	case *model.Entry:
		if v == nil {
			return nil
		}
		return s.Normalize(v)
	case model.Entry:
		return s.Normalize(&v)
	case map[string]any:
		return s.Normalize(s.entryFromMap(v))
	default:
		return nil
	}
}

// entryFromMap はmap[string]anyからエントリーへの型強制を行う。
// 型が合わないフィールドはゼロ値となり、Normalizeでデフォルト化される。
func (s *Sanitizer) entryFromMap(m map[string]any) *model.Entry {
	e := &model.Entry{
		ID:                 asString(m["id"]),
		Date:               asString(m["date"]),
		ApprovalDeadline:   asString(m["approvalDeadline"]),
		Caption:            asString(m["caption"]),
		PlatformCaptions:   asStringMap(m["platformCaptions"]),
		AssetType:          model.AssetType(asString(m["assetType"])),
		Script:             asString(m["script"]),
		DesignCopy:         asString(m["designCopy"]),
		CarouselSlides:     asStringSlice(m["carouselSlides"]),
		Platforms:          asStringSlice(m["platforms"]),
		PreviewURL:         asString(m["previewUrl"]),
		FirstComment:       asString(m["firstComment"]),
		URL:                asString(m["url"]),
		Status:             model.Status(asString(m["status"])),
		WorkflowStatus:     model.WorkflowStatus(asString(m["workflowStatus"])),
		Approvers:          asStringSlice(m["approvers"]),
		Author:             asString(m["author"]),
		Checklist:          checklistFromAny(m["checklist"]),
		Comments:           s.commentsFromAny(m["comments"]),
		PublishStatus:      publishStatusFromAny(m["publishStatus"]),
		PublishedAt:        asString(m["publishedAt"]),
		Analytics:          analyticsFromAny(m["analytics"]),
		AnalyticsUpdatedAt: asString(m["analyticsUpdatedAt"]),
		CreatedAt:          asString(m["createdAt"]),
		UpdatedAt:          asString(m["updatedAt"]),
		ApprovedAt:         asString(m["approvedAt"]),
		DeletedAt:          asString(m["deletedAt"]),
		Evergreen:          asBool(m["evergreen"]),
		VariantOf:          asString(m["variantOfId"]),
		SyncState:          model.SyncState(asString(m["syncState"])),
		SourceIdeaID:       asString(m["sourceIdeaId"]),
	}
	return e
}

// Normalize は型付きエントリーの全フィールドへ不変条件を適用する。
// 冪等: Normalize(Normalize(e)) は Normalize(e) と深い等価になる。
func (s *Sanitizer) Normalize(in *model.Entry) *model.Entry {
	e := in.Clone()

	e.ID = strings.TrimSpace(e.ID)
	e.Date = normalizeDate(e.Date)
	e.ApprovalDeadline = normalizeDate(e.ApprovalDeadline)
	e.Caption = s.text.Sanitize(e.Caption)
	e.FirstComment = s.text.Sanitize(e.FirstComment)
	e.PreviewURL = strings.TrimSpace(e.PreviewURL)
	e.URL = strings.TrimSpace(e.URL)
	e.Author = strings.TrimSpace(e.Author)

	// プラットフォーム別キャプションの正規化
	if len(e.PlatformCaptions) > 0 {
		captions := make(map[string]string)
		for platform, caption := range e.PlatformCaptions {
			platform = strings.TrimSpace(platform)
			caption = s.text.Sanitize(caption)
			if platform != "" && caption != "" {
				captions[platform] = caption
			}
		}
		if len(captions) == 0 {
			captions = nil
		}
		e.PlatformCaptions = captions
	}

	// アセット種別のデフォルトと排他制約:
	// assetTypeに対応するペイロードのみを保持し、他は破棄する。
	switch e.AssetType {
	case model.AssetVideo, model.AssetDesign, model.AssetCarousel, model.AssetNone:
	default:
		e.AssetType = model.AssetDesign
	}
	e.Script = s.text.Sanitize(e.Script)
	e.DesignCopy = s.text.Sanitize(e.DesignCopy)
	e.CarouselSlides = sanitizeSlice(s.text, e.CarouselSlides)
	switch e.AssetType {
	case model.AssetVideo:
		e.DesignCopy = ""
		e.CarouselSlides = nil
	case model.AssetDesign:
		e.Script = ""
		e.CarouselSlides = nil
	case model.AssetCarousel:
		e.Script = ""
		e.DesignCopy = ""
	case model.AssetNone:
		e.Script = ""
		e.DesignCopy = ""
		e.CarouselSlides = nil
	}

	e.Platforms = dedupeStrings(e.Platforms)
	e.Approvers = dedupeStrings(e.Approvers)

	// 二値ステータスのデフォルト
	if e.Status != model.StatusApproved {
		e.Status = model.StatusPending
	}

	// workflowStatusのデフォルト: 未知の値はstatusから導出する。
	switch e.WorkflowStatus {
	case model.WorkflowDraft, model.WorkflowReadyForReview,
		model.WorkflowApproved, model.WorkflowPublished:
	default:
		if e.Status == model.StatusApproved {
			e.WorkflowStatus = model.WorkflowApproved
		} else {
			e.WorkflowStatus = model.WorkflowDraft
		}
	}

	// status/workflowStatusの整合: Approved ⇒ workflowStatus ∈ {Approved, Published}。
	// 逆方向も強制し、矛盾した組を残さない。
	if e.Status == model.StatusApproved {
		if e.WorkflowStatus != model.WorkflowApproved && e.WorkflowStatus != model.WorkflowPublished {
			e.WorkflowStatus = model.WorkflowApproved
		}
	} else if e.WorkflowStatus == model.WorkflowApproved || e.WorkflowStatus == model.WorkflowPublished {
		e.Status = model.StatusApproved
	}

	// approvedAtはstatus==Approvedと同値でのみ存在する。
	if e.Status == model.StatusApproved {
		if e.ApprovedAt == "" {
			if e.UpdatedAt != "" {
				e.ApprovedAt = e.UpdatedAt
			} else {
				e.ApprovedAt = e.CreatedAt
			}
		}
	} else {
		e.ApprovedAt = ""
	}

	e.Checklist = normalizeChecklist(e.Checklist)
	e.Comments = s.normalizeComments(e.Comments)
	e.PublishStatus = normalizePublishStatus(e.PublishStatus)
	e.Analytics = normalizeAnalytics(e.Analytics)

	// statusDetailは常に再計算され、入力値は信頼されない。
	e.StatusDetail = model.StatusDetail(e.Status, e.Checklist)

	// 同期状態のデフォルト: 未知の値はサーバー確認済みとして扱う
	// （リモート由来のデータが大半であるため）。
	switch e.SyncState {
	case model.SyncLocal, model.SyncPending, model.SyncSynced:
	default:
		e.SyncState = model.SyncSynced
	}

	return e
}

// normalizeChecklist は任意のチェックリストを固定キーセットへ強制する。
// 欠損キーはfalse、未知キーは破棄される。
func normalizeChecklist(raw model.Checklist) model.Checklist {
	out := make(model.Checklist, len(model.ChecklistKeys()))
	for _, key := range model.ChecklistKeys() {
		out[key] = raw[key]
	}
	return out
}

// checklistFromAny はmap[string]any形式のチェックリストを型変換する。
// キーセットの強制はNormalize側のnormalizeChecklistが行う。
func checklistFromAny(v any) model.Checklist {
	raw := asMap(v)
	if raw == nil {
		return nil
	}
	out := make(model.Checklist, len(raw))
	for k, val := range raw {
		out[k] = asBool(val)
	}
	return out
}

// normalizeComments はコメントリストを正規化する。
// 本文が空のコメントは除去され、本文・作成者はサニタイズされる。
func (s *Sanitizer) normalizeComments(comments []model.Comment) []model.Comment {
	var out []model.Comment
	for _, c := range comments {
		body := s.text.Sanitize(c.Body)
		if body == "" {
			continue
		}
		out = append(out, model.Comment{
			ID:        strings.TrimSpace(c.ID),
			Author:    strings.TrimSpace(c.Author),
			Body:      body,
			CreatedAt: c.CreatedAt,
			Mentions:  dedupeStrings(c.Mentions),
		})
	}
	return out
}

// commentsFromAny は[]any形式のコメントリストを型変換する。
func (s *Sanitizer) commentsFromAny(v any) []model.Comment {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []model.Comment
	for _, item := range raw {
		m := asMap(item)
		if m == nil {
			continue
		}
		out = append(out, model.Comment{
			ID:        asString(m["id"]),
			Author:    asString(m["author"]),
			Body:      asString(m["body"]),
			CreatedAt: asString(m["createdAt"]),
			Mentions:  asStringSlice(m["mentions"]),
		})
	}
	return out
}

// normalizePublishStatus はプラットフォームごとの公開状態を正規化する。
// 未知のstatus値はpendingへデフォルト化される。
func normalizePublishStatus(raw map[string]model.PlatformPublishStatus) map[string]model.PlatformPublishStatus {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]model.PlatformPublishStatus)
	for platform, st := range raw {
		platform = strings.TrimSpace(platform)
		if platform == "" {
			continue
		}
		switch st.Status {
		case model.PublishPending, model.PublishPublishing,
			model.PublishPublished, model.PublishFailed:
		default:
			st.Status = model.PublishPending
		}
		out[platform] = st
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// publishStatusFromAny はmap[string]any形式の公開状態を型変換する。
func publishStatusFromAny(v any) map[string]model.PlatformPublishStatus {
	raw := asMap(v)
	if raw == nil {
		return nil
	}
	out := make(map[string]model.PlatformPublishStatus)
	for platform, val := range raw {
		m := asMap(val)
		if m == nil {
			continue
		}
		out[platform] = model.PlatformPublishStatus{
			Status:    model.PublishState(asString(m["status"])),
			URL:       asString(m["url"]),
			Error:     asString(m["error"]),
			Timestamp: asString(m["timestamp"]),
		}
	}
	return out
}

// normalizeAnalytics はアナリティクスのメトリクスマップを正規化する。
// null・空のメトリクス値は刈り取られる。
func normalizeAnalytics(raw map[string]map[string]string) map[string]map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]map[string]string)
	for platform, metrics := range raw {
		platform = strings.TrimSpace(platform)
		if platform == "" {
			continue
		}
		pruned := make(map[string]string)
		for name, value := range metrics {
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			if name != "" && value != "" {
				pruned[name] = value
			}
		}
		if len(pruned) > 0 {
			out[platform] = pruned
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// analyticsFromAny はmap[string]any形式のアナリティクスを型変換する。
func analyticsFromAny(v any) map[string]map[string]string {
	raw := asMap(v)
	if raw == nil {
		return nil
	}
	out := make(map[string]map[string]string)
	for platform, val := range raw {
		metrics := asStringMap(val)
		if metrics != nil {
			out[platform] = metrics
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sanitizeSlice はスライスの各要素をサニタイズし、空要素を除去する。
func sanitizeSlice(text security.TextSanitizerService, items []string) []string {
	var out []string
	for _, item := range items {
		cleaned := text.Sanitize(item)
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// normalizeDate はISO日付文字列を検証する。パースできない値は空文字列とする。
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if _, err := time.Parse(model.DateFormat, value); err != nil {
		return ""
	}
	return value
}
