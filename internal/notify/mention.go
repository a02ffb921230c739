package notify

import (
	"regexp"
	"strings"

	"github.com/hitoshi/planboard/internal/model"
)

// mentionPattern はコメント本文中の@トークンを抽出する。
var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_.-]+)`)

// ParseMentions はコメント本文から@トークン（@を除く）を順序を保って返す。
func ParseMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	var tokens []string
	for _, m := range matches {
		if m[1] != "" {
			tokens = append(tokens, m[1])
		}
	}
	return tokens
}

// ResolveMention は@トークンを既知の名前のディレクトリへ解決する。
// 解決順は 完全一致 → 空白無視一致 → 前方一致 → 単語一致。
// 解決できないトークンはエラーではなく、そのまま本文の文字として扱われる。
func ResolveMention(token string, directory []string) (string, bool) {
	if token == "" {
		return "", false
	}

	for _, name := range directory {
		if name == token {
			return name, true
		}
	}

	folded := strings.ToLower(strings.ReplaceAll(token, " ", ""))
	for _, name := range directory {
		if strings.ToLower(strings.ReplaceAll(name, " ", "")) == folded {
			return name, true
		}
	}

	lowerToken := strings.ToLower(token)
	for _, name := range directory {
		if strings.HasPrefix(strings.ToLower(name), lowerToken) {
			return name, true
		}
	}

	for _, name := range directory {
		for _, word := range strings.Fields(name) {
			if strings.EqualFold(word, token) {
				return name, true
			}
		}
	}

	return "", false
}

// BuildCommentNotifications はコメント1件からメンション通知と
// コメント活動通知を組み立てる。
//
// コメント活動の宛先は「会話の相手側」: コメント主が承認者なら作成者へ、
// 作成者なら承認者へ、どちらでもなければ両方へ。コメント主自身には
// 決して通知しない。
func BuildCommentNotifications(entry *model.Entry, comment model.Comment, directory []string) []*model.Notification {
	var items []*model.Notification
	meta := map[string]string{"commentId": comment.ID}

	mentioned := make(map[string]bool)
	for _, token := range ParseMentions(comment.Body) {
		name, ok := ResolveMention(token, directory)
		if !ok || name == comment.Author || mentioned[name] {
			continue
		}
		mentioned[name] = true
		items = append(items, &model.Notification{
			EntryID: entry.ID,
			User:    name,
			Type:    model.NotificationMention,
			Message: comment.Author + " mentioned you in a comment on \"" + entry.Describe() + "\"",
			Meta:    meta,
		})
	}

	var recipients []string
	switch {
	case entry.HasApprover(comment.Author):
		recipients = []string{entry.Author}
	case comment.Author == entry.Author:
		recipients = entry.Approvers
	default:
		recipients = append([]string{entry.Author}, entry.Approvers...)
	}

	seen := make(map[string]bool)
	for _, name := range recipients {
		if name == "" || name == comment.Author || seen[name] {
			continue
		}
		seen[name] = true
		items = append(items, &model.Notification{
			EntryID: entry.ID,
			User:    name,
			Type:    model.NotificationComment,
			Message: comment.Author + " commented on \"" + entry.Describe() + "\"",
			Meta:    meta,
		})
	}

	return items
}
