package notify

import (
	"reflect"
	"testing"

	"github.com/hitoshi/planboard/internal/model"
)

// TestParseMentions はコメント本文から@トークンが順に抽出されることを検証する。
func TestParseMentions(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"単一メンション", "ping @Jane please", []string{"Jane"}},
		{"複数メンション", "@Dan and @Jane check this", []string{"Dan", "Jane"}},
		{"メンションなし", "no mentions here", nil},
		{"メールアドレスも抽出される", "mail me @jane.doe", []string{"jane.doe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMentions(tt.body)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMentions(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

// TestResolveMention は解決順序（完全→空白無視→前方→単語）を検証する。
func TestResolveMention(t *testing.T) {
	directory := []string{"Jane Doe", "Jan", "Dan Smith"}

	tests := []struct {
		name   string
		token  string
		want   string
		wantOK bool
	}{
		{"完全一致", "Jan", "Jan", true},
		{"空白無視一致", "JaneDoe", "Jane Doe", true},
		{"前方一致はJanより優先", "Jane", "Jane Doe", true},
		{"単語一致", "Smith", "Dan Smith", true},
		{"未解決", "Nobody", "", false},
		{"空トークン", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveMention(tt.token, directory)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResolveMention(%q) = (%q, %v), want (%q, %v)",
					tt.token, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// TestBuildCommentNotifications_MentionAndRouting はメンション通知と
// コメント活動通知が併せて生成されることを検証する。
func TestBuildCommentNotifications_MentionAndRouting(t *testing.T) {
	entry := &model.Entry{
		ID:        "e1",
		Caption:   "Launch post",
		Author:    "Dan",
		Approvers: []string{"Jane Doe"},
	}
	comment := model.Comment{ID: "c1", Author: "Dan", Body: "ping @Jane please"}
	directory := []string{"Jane Doe", "Jan"}

	items := BuildCommentNotifications(entry, comment, directory)
	if len(items) != 2 {
		t.Fatalf("notifications = %d, want 2", len(items))
	}

	if items[0].Type != model.NotificationMention || items[0].User != "Jane Doe" {
		t.Errorf("mention notification = {%s %s}, want {mention Jane Doe}", items[0].Type, items[0].User)
	}
	if items[1].Type != model.NotificationComment || items[1].User != "Jane Doe" {
		t.Errorf("comment notification = {%s %s}, want {comment Jane Doe}", items[1].Type, items[1].User)
	}
	for _, item := range items {
		if item.User == comment.Author {
			t.Error("the commenter must never be notified")
		}
		if item.Meta["commentId"] != "c1" {
			t.Errorf("meta commentId = %q, want c1", item.Meta["commentId"])
		}
	}
}

// TestBuildCommentNotifications_ApproverCommentsNotifiesAuthor は承認者の
// コメントが作成者へ届くことを検証する。
func TestBuildCommentNotifications_ApproverCommentsNotifiesAuthor(t *testing.T) {
	entry := &model.Entry{
		ID:        "e1",
		Caption:   "Launch post",
		Author:    "Dan",
		Approvers: []string{"Jane"},
	}
	comment := model.Comment{ID: "c2", Author: "Jane", Body: "looks good"}

	items := BuildCommentNotifications(entry, comment, nil)
	if len(items) != 1 {
		t.Fatalf("notifications = %d, want 1", len(items))
	}
	if items[0].User != "Dan" {
		t.Errorf("recipient = %q, want Dan", items[0].User)
	}
}

// TestBuildCommentNotifications_ThirdPartyNotifiesBothSides は第三者の
// コメントが作成者と承認者の両方へ届くことを検証する。
func TestBuildCommentNotifications_ThirdPartyNotifiesBothSides(t *testing.T) {
	entry := &model.Entry{
		ID:        "e1",
		Caption:   "Launch post",
		Author:    "Dan",
		Approvers: []string{"Jane"},
	}
	comment := model.Comment{ID: "c3", Author: "Sam", Body: "thoughts?"}

	items := BuildCommentNotifications(entry, comment, nil)
	if len(items) != 2 {
		t.Fatalf("notifications = %d, want 2", len(items))
	}
	recipients := map[string]bool{}
	for _, item := range items {
		recipients[item.User] = true
	}
	if !recipients["Dan"] || !recipients["Jane"] {
		t.Errorf("recipients = %v, want Dan and Jane", recipients)
	}
}
