package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
)

// eventSource はセッションが必要とするストア操作。
// テストで削除失敗を注入できるように最小のインターフェースとして定義する。
type eventSource interface {
	QueryAfter(ctx context.Context, userID string, lastID int64) ([]Notification, error)
	DeleteByIDs(ctx context.Context, userID string, ids []int64) error
}

// streamWriter はセッションの出力先。書き込んだバイトを即座に
// トランスポートへ送出できる必要がある。
type streamWriter interface {
	io.Writer
	http.Flusher
}

// session は1つのストリーム接続に束縛された配信プロセス。
// 状態はすべてリクエストから導出され、終了時に破棄される。
type session struct {
	// store は通知イベントの取得と削除に使用するストア。
	store eventSource
	// resolver は表示用タイトル・本文・URLの解決器。
	resolver resolver
	// userID は配信対象のユーザーID。
	userID string
	// cursor はクライアントが申告した受信済み通知ID。
	cursor int64
	// lifetime はセッションの最大持続時間。
	lifetime time.Duration
	// pollInterval はストアを確認する間隔。
	pollInterval time.Duration
}

// run はポーリングループを実行する。新着通知が見つかった場合は
// 1バッチを配信して終了する。期限まで新着がなければハートビートのみ
// 送信して終了する（クライアントは再接続して続きを受信する）。
// クライアント切断時はコンテキストのキャンセルにより直ちに終了する。
func (s *session) run(ctx context.Context, w streamWriter) error {
	deadline := time.Now().Add(s.lifetime)

	for time.Now().Before(deadline) {
		notifications, err := s.store.QueryAfter(ctx, s.userID, s.cursor)
		if err != nil {
			// 単発のポーリング失敗はセッションの終了に留める。
			// 何も削除していないため通知が失われることはない。
			return fmt.Errorf("通知のポーリングに失敗: %w", err)
		}

		if len(notifications) > 0 {
			return s.deliver(ctx, w, notifications)
		}

		// 接続維持のためのハートビート。クライアントには無視される。
		if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
			return fmt.Errorf("ハートビートの送信に失敗: %w", err)
		}
		w.Flush()

		if err := s.wait(ctx); err != nil {
			return err
		}
	}

	return nil
}

// wait は次のポーリングまでpollInterval待機する。
// コンテキストのキャンセル（クライアント切断）で直ちに復帰する。
func (s *session) wait(ctx context.Context) error {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// deliver は取得した通知を1バッチとして配信し、配信済みの行を削除する。
// 削除の失敗はログに記録するのみで、セッションは正常終了する。この場合、
// クライアントの次回接続時（古いカーソル）に同じバッチが再配信される
// （最低1回配信の受容されたトレードオフ）。
func (s *session) deliver(ctx context.Context, w streamWriter, notifications []Notification) error {
	payload := buildPayload(s.resolver, notifications)

	if err := sse.Encode(w, sse.Event{
		Event: "notifications",
		Data:  payload,
	}); err != nil {
		return fmt.Errorf("配信ペイロードの送信に失敗: %w", err)
	}
	w.Flush()

	if err := s.store.DeleteByIDs(ctx, s.userID, payload.IDs); err != nil {
		log.Printf("配信済み通知の削除に失敗（次回接続時に再配信される）(user_id=%s, ids=%v): %v",
			s.userID, payload.IDs, err)
	}

	// 1回の配信でセッションを終了する。接続を開いたまま配信を続けるより、
	// 接続ごとの資源保持が制限され、障害からの回復も単純になる。
	return nil
}
