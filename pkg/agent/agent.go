// Package agent はストリームサーバーに接続して通知を受信し、
// ユーザーへ提示するクライアントエージェントを提供する。
//
// エージェントはカーソル（最後に受信した通知ID）を申告してストリームを
// 開き、サーバーが接続を閉じるたびに一定間隔で再接続する。受信した
// バッチはPresenterを通じて順に提示され、カーソルはバッチ単位で
// 永続化される。
package agent

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"

	"github.com/nao1215/pulse/pkg/event"
	"github.com/nao1215/pulse/pkg/httpclient"
)

// streamPath はストリーム接続のエンドポイントパス。
const streamPath = "/api/v1/notifications/stream"

// defaultRetryDelay は再接続までの待機時間。
const defaultRetryDelay = 3000 * time.Millisecond

// Agent はストリームサーバーへの接続と通知の提示を行うクライアント。
type Agent struct {
	// client はストリームサーバーへのHTTPクライアント。
	client *httpclient.Client
	// presenter は受信した通知の提示先。
	presenter Presenter
	// cursor は受信位置の永続化カーソル。
	cursor *Cursor
	// retryDelay は接続終了から再接続までの待機時間。
	retryDelay time.Duration
}

// New は新しいエージェントを生成する。
func New(client *httpclient.Client, presenter Presenter, cursor *Cursor) *Agent {
	return &Agent{
		client:     client,
		presenter:  presenter,
		cursor:     cursor,
		retryDelay: defaultRetryDelay,
	}
}

// Run は接続・受信・再接続のループを実行する。
// コンテキストがキャンセルされるまで戻らない。接続エラーは
// ログに記録し、待機ののち再接続する（接続断は正常系）。
func (a *Agent) Run(ctx context.Context) error {
	for {
		if err := a.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("ストリーム接続が終了: %v", err)
		}

		timer := time.NewTimer(a.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// connect は1回のストリーム接続を実行する。サーバーが接続を閉じるまで
// 受信を続け、受信したバッチを提示してカーソルを進める。
func (a *Agent) connect(ctx context.Context) error {
	path := streamPath
	if lastID := a.cursor.Current(); lastID > 0 {
		path = fmt.Sprintf("%s?last_id=%d", streamPath, lastID)
	}

	resp, err := a.client.OpenStream(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 204は通知チャネルが無効化されている状態。他の接続終了と同様に
	// 再接続の待機に入る（設定の有効化を定期的に確認することになる）
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	events, err := sse.Decode(resp.Body)
	if err != nil {
		return fmt.Errorf("ストリームのデコードに失敗: %w", err)
	}

	for _, ev := range events {
		if ev.Event != "notifications" {
			continue
		}
		data, ok := ev.Data.(string)
		if !ok {
			continue
		}
		payload, err := event.DecodePayload(data)
		if err != nil {
			return fmt.Errorf("配信ペイロードの解釈に失敗: %w", err)
		}
		a.apply(payload)
	}
	return nil
}

// apply は1バッチの通知を提示し、カーソルを進める。
// 提示はIDの昇順（受信順）で行う。
func (a *Agent) apply(payload event.Payload) {
	for _, item := range payload.Items {
		a.presenter.Notify(item)
		a.presenter.Toast(item)
		a.presenter.IncrementUnseen()
		a.presenter.PlaySound()
	}

	if payload.LastID > 0 {
		if err := a.cursor.Store(payload.LastID); err != nil {
			// 保存に失敗しても受信は継続する。次回接続で同じバッチが
			// 再配信される可能性があるが、通知が失われることはない
			log.Printf("カーソルの保存に失敗: %v", err)
		}
	}
}
