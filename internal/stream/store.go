package stream

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/pulse/pkg/event"
)

// ChannelBrowser はSSEストリームによるブラウザ通知チャネルの識別子。
// ユーザーがこのチャネルを有効化している場合のみストリームを配信する。
const ChannelBrowser = "browser"

// knownChannels は設定可能な通知チャネルの一覧。
var knownChannels = map[string]struct{}{
	ChannelBrowser: {},
	"email":        {},
	"web":          {},
}

// Notification はストアに保存された通知イベント1件を表す。
// 行は挿入と削除のみ行われ、更新されることはない。
type Notification struct {
	// ID は通知の一意識別子。挿入順に単調増加する。
	ID int64
	// UserID は通知先のユーザーID。
	UserID string
	// EventName は通知の元となったドメインイベント名。
	EventName event.Type
	// EventData はイベントの構造化ペイロード。
	EventData event.Data
	// CreatedAt は通知の作成日時（Unix秒）。
	CreatedAt int64
}

// Store は通知イベントとチャネル設定の永続化を担当する。
// 複数のセッションからの並行アクセスに対して安全である。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert は通知イベントを1件追加し、採番されたIDを返す。
// 挿入された行は直後のQueryAfterから参照可能となる。
func (s *Store) Insert(ctx context.Context, userID string, name event.Type, data event.Data) (int64, error) {
	raw, err := event.EncodeData(data)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, event_name, event_data, created_at) VALUES (?, ?, ?, ?)",
		userID, string(name), raw, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("通知の挿入に失敗: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("挿入された通知IDの取得に失敗: %w", err)
	}
	return id, nil
}

// QueryAfter は指定ユーザーの、カーソルより大きいIDを持つ通知を
// ID昇順ですべて取得する。該当がなければ空のスライスを返す。
func (s *Store) QueryAfter(ctx context.Context, userID string, lastID int64) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, event_name, event_data, created_at FROM notifications WHERE user_id = ? AND id > ? ORDER BY id ASC",
		userID, lastID,
	)
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		var name, raw string
		if err := rows.Scan(&n.ID, &n.UserID, &name, &raw, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("通知行の読み取りに失敗: %w", err)
		}
		n.EventName = event.Type(name)
		if n.EventData, err = event.DecodeData(raw); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知の走査に失敗: %w", err)
	}
	return notifications, nil
}

// DeleteByIDs は指定ユーザーの通知を指定IDの集合で削除する（配信ACK）。
// 空のID集合に対しては何もせず成功を返す。削除は必ずユーザーIDで
// 絞り込まれ、他ユーザーの行には影響しない。
func (s *Store) DeleteByIDs(ctx context.Context, userID string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM notifications WHERE user_id = ? AND id IN (%s)", placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("配信済み通知の削除に失敗: %w", err)
	}
	return nil
}

// EnabledChannels は指定ユーザーが有効化している通知チャネルの一覧を返す。
// 未設定の場合は空のスライスを返す。
func (s *Store) EnabledChannels(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT channel FROM user_channels WHERE user_id = ? ORDER BY channel",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("チャネル設定の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var channels []string
	for rows.Next() {
		var ch string
		if err := rows.Scan(&ch); err != nil {
			return nil, fmt.Errorf("チャネル設定行の読み取りに失敗: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャネル設定の走査に失敗: %w", err)
	}
	return channels, nil
}

// SetChannels は指定ユーザーの通知チャネル設定を置き換える。
// 既存の設定をすべて削除してから新しい設定を挿入する。
func (s *Store) SetChannels(ctx context.Context, userID string, channels []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_channels WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("チャネル設定の削除に失敗: %w", err)
	}

	for _, ch := range channels {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_channels (user_id, channel) VALUES (?, ?)", userID, ch,
		); err != nil {
			return fmt.Errorf("チャネル設定の挿入に失敗: %w", err)
		}
	}

	return tx.Commit()
}

// KnownChannel は指定されたチャネル名が設定可能な一覧に存在するかを返す。
func KnownChannel(channel string) bool {
	_, ok := knownChannels[channel]
	return ok
}
