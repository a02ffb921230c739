package sanitize

import (
	"strings"

	"github.com/hitoshi/planboard/internal/model"
)

// Idea は任意の入力から正規のアイデアを構築する。
// 入力がオブジェクトでない場合のみnilを返す。Entryと同じ契約。
func (s *Sanitizer) Idea(raw any) *model.Idea {
	switch v := raw.(type) {
	case *model.Idea:
		if v == nil {
			return nil
		}
		return s.normalizeIdea(v)
	case model.Idea:
		return s.normalizeIdea(&v)
	case map[string]any:
		return s.normalizeIdea(&model.Idea{
			ID:          asString(v["id"]),
			Type:        asString(v["type"]),
			Title:       asString(v["title"]),
			Notes:       asString(v["notes"]),
			Links:       asStringSlice(v["links"]),
			Attachments: asStringSlice(v["attachments"]),
			CreatedBy:   asString(v["createdBy"]),
			CreatedAt:   asString(v["createdAt"]),
			TargetDate:  asString(v["targetDate"]),
			TargetMonth: asString(v["targetMonth"]),
			ConvertedTo: asString(v["convertedToEntryId"]),
		})
	default:
		return nil
	}
}

func (s *Sanitizer) normalizeIdea(in *model.Idea) *model.Idea {
	idea := *in
	idea.ID = strings.TrimSpace(idea.ID)
	idea.Type = strings.TrimSpace(idea.Type)
	idea.Title = s.text.Sanitize(idea.Title)
	idea.Notes = s.text.Sanitize(idea.Notes)
	idea.Links = dedupeStrings(in.Links)
	idea.Attachments = dedupeStrings(in.Attachments)
	idea.CreatedBy = strings.TrimSpace(idea.CreatedBy)
	idea.TargetDate = normalizeDate(idea.TargetDate)
	idea.ConvertedTo = strings.TrimSpace(idea.ConvertedTo)
	return &idea
}

// Notification は任意の入力から正規の通知を構築する。
// 入力がオブジェクトでない場合のみnilを返す。
// entryId・user・type・messageの必須判定は通知エンジン側で行う。
func (s *Sanitizer) Notification(raw any) *model.Notification {
	switch v := raw.(type) {
	case *model.Notification:
		if v == nil {
			return nil
		}
		return s.normalizeNotification(v)
	case model.Notification:
		return s.normalizeNotification(&v)
	case map[string]any:
		return s.normalizeNotification(&model.Notification{
			ID:        asString(v["id"]),
			EntryID:   asString(v["entryId"]),
			User:      asString(v["user"]),
			Type:      model.NotificationType(asString(v["type"])),
			Message:   asString(v["message"]),
			CreatedAt: asString(v["createdAt"]),
			Read:      asBool(v["read"]),
			Meta:      asStringMap(v["meta"]),
			Key:       asString(v["key"]),
		})
	default:
		return nil
	}
}

func (s *Sanitizer) normalizeNotification(in *model.Notification) *model.Notification {
	n := *in
	n.ID = strings.TrimSpace(n.ID)
	n.EntryID = strings.TrimSpace(n.EntryID)
	n.User = strings.TrimSpace(n.User)
	n.Message = s.text.Sanitize(n.Message)
	switch n.Type {
	case model.NotificationApprovalAssigned, model.NotificationMention,
		model.NotificationComment, model.NotificationApprovalUpdate:
	default:
		n.Type = ""
	}
	if in.Meta != nil {
		n.Meta = make(map[string]string, len(in.Meta))
		for k, v := range in.Meta {
			n.Meta[k] = v
		}
	}
	return &n
}
