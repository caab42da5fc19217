package stream

import (
	"fmt"

	"github.com/nao1215/pulse/pkg/event"
)

// appLabel はプロジェクト名が解決できない場合に使用する汎用タイトル。
const appLabel = "Pulse"

// resolver は通知イベントから表示用のタイトル・本文・URLを解決する。
// クライアントは解決済みの値をそのまま表示するため、フォールバックの
// 優先順位はサーバー側で完結させる。
type resolver struct {
	// baseURL は遷移先URLの生成に使用するフロントエンドのベースURL。
	baseURL string
}

// title は通知のタイトルを解決する。優先順位は
// タスク配下のプロジェクト名、イベント直下のプロジェクト名、
// 汎用アプリケーション名の順である。
func (r resolver) title(n Notification) string {
	if n.EventData.Task != nil && n.EventData.Task.ProjectName != "" {
		return n.EventData.Task.ProjectName
	}
	if n.EventData.ProjectName != "" {
		return n.EventData.ProjectName
	}
	return appLabel
}

// body は通知の本文をイベント名に応じて解決する。
func (r resolver) body(n Notification) string {
	taskTitle := ""
	if n.EventData.Task != nil {
		taskTitle = n.EventData.Task.Title
	}

	switch n.EventName {
	case event.TypeTaskCreate:
		return fmt.Sprintf("タスク「%s」が作成されました", taskTitle)
	case event.TypeTaskUpdate:
		return fmt.Sprintf("タスク「%s」が更新されました", taskTitle)
	case event.TypeTaskClose:
		return fmt.Sprintf("タスク「%s」がクローズされました", taskTitle)
	case event.TypeTaskMoveColumn:
		return fmt.Sprintf("タスク「%s」が移動されました", taskTitle)
	case event.TypeTaskAssigneeChange:
		return fmt.Sprintf("タスク「%s」の担当者が変更されました", taskTitle)
	case event.TypeCommentCreate:
		return fmt.Sprintf("タスク「%s」にコメントが追加されました", taskTitle)
	default:
		return string(n.EventName)
	}
}

// url は通知クリック時の遷移先URLを解決する。タスクを伴うイベントは
// タスク詳細ビューへ、コメントを伴う場合はコメントのフラグメントを
// 付加する。タスクを特定できない場合はダッシュボードへ誘導する。
func (r resolver) url(n Notification) string {
	taskID := n.EventData.TaskID()
	if taskID > 0 {
		url := fmt.Sprintf("%s/tasks/%d", r.baseURL, taskID)
		if n.EventData.Comment != nil {
			return fmt.Sprintf("%s#comment-%d", url, n.EventData.Comment.ID)
		}
		return url
	}
	return r.baseURL + "/dashboard"
}

// buildPayload は1回のポーリングで取得した通知からワイヤーペイロードを構築する。
// 通知はID昇順で渡されるため、最後のIDがバッチの最大ID（新しいカーソル値）となる。
func buildPayload(r resolver, notifications []Notification) event.Payload {
	items := make([]event.Item, 0, len(notifications))
	ids := make([]int64, 0, len(notifications))
	var lastID int64

	for _, n := range notifications {
		ids = append(ids, n.ID)
		lastID = n.ID
		items = append(items, event.Item{
			ID:    n.ID,
			Title: r.title(n),
			Body:  r.body(n),
			URL:   r.url(n),
			Date:  n.CreatedAt,
		})
	}

	return event.Payload{
		Items:  items,
		IDs:    ids,
		LastID: lastID,
	}
}
