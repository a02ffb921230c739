package entry

import (
	"reflect"
	"testing"

	"github.com/hitoshi/planboard/internal/model"
)

func strPtr(s string) *string { return &s }

// TestPatch_Fields は設定済みフィールドのみがJSON名で列挙されることを検証する。
func TestPatch_Fields(t *testing.T) {
	asset := model.AssetVideo
	workflow := model.WorkflowApproved
	evergreen := true
	p := Patch{
		Caption:        strPtr("new caption"),
		AssetType:      &asset,
		Platforms:      []string{"instagram"},
		WorkflowStatus: &workflow,
		Checklist:      model.Checklist{"captionFinal": true},
		Evergreen:      &evergreen,
	}

	want := []string{"caption", "assetType", "platforms", "workflowStatus", "checklist", "evergreen"}
	if got := p.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}

	if got := (Patch{}).Fields(); got != nil {
		t.Errorf("empty Patch Fields() = %v, want nil", got)
	}
}

// TestPatch_Apply はnilフィールドが既存値を保ち、設定済みフィールドのみ
// 上書きされることを検証する。
func TestPatch_Apply(t *testing.T) {
	e := &model.Entry{
		ID:        "e-1",
		Date:      "2026-09-01",
		Caption:   "old",
		Platforms: []string{"x"},
		Approvers: []string{"Alice"},
	}

	p := Patch{
		Caption:   strPtr("new"),
		Approvers: []string{"Alice", "Bob"},
	}
	p.Apply(e)

	if e.Caption != "new" {
		t.Errorf("Caption = %q, want %q", e.Caption, "new")
	}
	if e.Date != "2026-09-01" {
		t.Errorf("Date = %q, want unchanged", e.Date)
	}
	if !reflect.DeepEqual(e.Platforms, []string{"x"}) {
		t.Errorf("Platforms = %v, want unchanged", e.Platforms)
	}
	if !reflect.DeepEqual(e.Approvers, []string{"Alice", "Bob"}) {
		t.Errorf("Approvers = %v, want replaced", e.Approvers)
	}
}

// TestPatch_RemotePayload は部分更新ペイロードの内容を検証する。
// assetType変更時は全アセットペイロードが、workflowStatus変更時は導出済み
// statusが同梱される。
func TestPatch_RemotePayload(t *testing.T) {
	asset := model.AssetVideo
	e := &model.Entry{
		ID:         "e-1",
		UpdatedAt:  "2026-08-28T12:00:00Z",
		AssetType:  model.AssetVideo,
		Script:     "scene one",
		DesignCopy: "",
	}

	p := Patch{AssetType: &asset}
	payload := p.remotePayload(e)

	if payload["updatedAt"] != e.UpdatedAt {
		t.Errorf("updatedAt = %v, want %v", payload["updatedAt"], e.UpdatedAt)
	}
	if payload["assetType"] != model.AssetVideo {
		t.Errorf("assetType = %v, want %v", payload["assetType"], model.AssetVideo)
	}
	// アセット種別の切替は他形式のペイロードも同期対象に含める
	for _, key := range []string{"script", "designCopy", "carouselSlides"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}
	if _, ok := payload["caption"]; ok {
		t.Error("payload contains caption, want absent")
	}

	workflow := model.WorkflowApproved
	e2 := &model.Entry{ID: "e-2", Status: model.StatusApproved, WorkflowStatus: model.WorkflowApproved}
	payload2 := Patch{WorkflowStatus: &workflow}.remotePayload(e2)
	if payload2["status"] != model.StatusApproved {
		t.Errorf("status = %v, want %v", payload2["status"], model.StatusApproved)
	}
}

// TestAddedApprovers は新規追加の承認者のみ抽出されることを検証する。
func TestAddedApprovers(t *testing.T) {
	tests := []struct {
		name   string
		before []string
		after  []string
		want   []string
	}{
		{"追加あり", []string{"Alice"}, []string{"Alice", "Bob"}, []string{"Bob"}},
		{"変更なし", []string{"Alice"}, []string{"Alice"}, nil},
		{"削除のみ", []string{"Alice", "Bob"}, []string{"Alice"}, nil},
		{"空から追加", nil, []string{"Carol"}, []string{"Carol"}},
		{"全入替", []string{"Alice"}, []string{"Bob", "Carol"}, []string{"Bob", "Carol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := addedApprovers(tt.before, tt.after); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("addedApprovers(%v, %v) = %v, want %v", tt.before, tt.after, got, tt.want)
			}
		})
	}
}
