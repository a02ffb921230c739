// Package model はドメインモデルを定義する。
package model

// Idea はエントリー化前の軽量なアイデアレコードを表す。
type Idea struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Notes       string   `json:"notes,omitempty"`
	Links       []string `json:"links,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	CreatedBy   string   `json:"createdBy,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	TargetDate  string   `json:"targetDate,omitempty"`
	TargetMonth string   `json:"targetMonth,omitempty"`

	// ConvertedTo はエントリーへ変換済みの場合、その変換先エントリーIDを保持する。
	ConvertedTo string `json:"convertedToEntryId,omitempty"`
}

// IsConverted はエントリーへ変換済みかを返す。
func (i *Idea) IsConverted() bool {
	return i.ConvertedTo != ""
}
