package event

import (
	"encoding/json"
	"fmt"
)

// Payload はストリームで配信される1バッチ分のワイヤーフォーマット。
// SSEの"notifications"イベントのデータ部としてJSONで送信される。
type Payload struct {
	// Items は配信される通知の一覧。IDの昇順で並ぶ。
	Items []Item `json:"items"`
	// IDs は配信された通知IDの一覧。サーバー側の削除（ACK）対象と一致する。
	IDs []int64 `json:"ids"`
	// LastID はバッチ内の最大通知ID。クライアントはこの値をカーソルとして永続化する。
	LastID int64 `json:"last_id"`
}

// Item は配信される通知1件分の表示用データ。
// タイトルとURLはサーバー側で解決済みであり、クライアントは追加の
// 問い合わせなしにそのまま表示できる。
type Item struct {
	// ID は通知の一意識別子。
	ID int64 `json:"id"`
	// Title は通知のタイトル（プロジェクト名またはアプリケーション名）。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
	// URL は通知クリック時の遷移先。
	URL string `json:"url"`
	// Date は通知の作成日時（Unix秒）。
	Date int64 `json:"date"`
}

// EncodeData はイベントデータをJSON文字列にシリアライズする。
// ストアのevent_dataカラムへの保存に使用する。
func EncodeData(data Data) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}
	return string(b), nil
}

// DecodeData はJSON文字列からイベントデータをデシリアライズする。
func DecodeData(raw string) (Data, error) {
	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Data{}, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return data, nil
}

// DecodePayload はSSEイベントのデータ部からワイヤーペイロードをデシリアライズする。
// クライアント側のストリームエージェントが使用する。
func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("配信ペイロードのデシリアライズに失敗: %w", err)
	}
	return p, nil
}
