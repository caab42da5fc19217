package event

// Type は通知の元となるドメインイベントの種類を表す。
type Type string

const (
	// TypeTaskCreate はタスクが作成されたことを表す。
	TypeTaskCreate Type = "task.create"
	// TypeTaskUpdate はタスクが更新されたことを表す。
	TypeTaskUpdate Type = "task.update"
	// TypeTaskClose はタスクがクローズされたことを表す。
	TypeTaskClose Type = "task.close"
	// TypeTaskMoveColumn はタスクが別のカラムへ移動したことを表す。
	TypeTaskMoveColumn Type = "task.move.column"
	// TypeTaskAssigneeChange はタスクの担当者が変更されたことを表す。
	TypeTaskAssigneeChange Type = "task.assignee.change"
	// TypeCommentCreate はタスクにコメントが追加されたことを表す。
	TypeCommentCreate Type = "comment.create"
)

// KnownType は指定されたイベント名がカタログに存在するかを返す。
// 通知登録APIでイベント名を検証するために使用する。
func KnownType(t Type) bool {
	switch t {
	case TypeTaskCreate, TypeTaskUpdate, TypeTaskClose,
		TypeTaskMoveColumn, TypeTaskAssigneeChange, TypeCommentCreate:
		return true
	default:
		return false
	}
}

// Data は通知イベントに付随する構造化ペイロード。
// イベント種類に応じてTaskやCommentが設定される。未使用のフィールドは
// JSONから省略される。
type Data struct {
	// ProjectName はイベント直下のプロジェクト名。タスクを伴わない
	// プロジェクト単位のイベントで設定される。
	ProjectName string `json:"project_name,omitempty"`
	// Task はイベントの対象タスク。タスク関連イベントで設定される。
	Task *TaskData `json:"task,omitempty"`
	// Comment はイベントの対象コメント。comment.createで設定される。
	Comment *CommentData `json:"comment,omitempty"`
}

// TaskData はイベント対象のタスク情報。
type TaskData struct {
	// ID はタスクの一意識別子。
	ID int64 `json:"id"`
	// Title はタスクのタイトル。
	Title string `json:"title"`
	// ProjectName はタスクが属するプロジェクト名。
	ProjectName string `json:"project_name,omitempty"`
}

// CommentData はイベント対象のコメント情報。
type CommentData struct {
	// ID はコメントの一意識別子。URLのフラグメントとして使用される。
	ID int64 `json:"id"`
	// Comment はコメント本文。
	Comment string `json:"comment,omitempty"`
}

// TaskID はイベントデータから対象タスクのIDを取り出す。
// タスクを伴わないイベントの場合は0を返す。
func (d Data) TaskID() int64 {
	if d.Task == nil {
		return 0
	}
	return d.Task.ID
}
