package stream

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pulse/pkg/event"
)

// fakeEventSource はセッションテスト用のストア実装。
// ポーリングごとの応答と削除の成否を制御できる。
type fakeEventSource struct {
	// batches はポーリングごとに返す通知のキュー。
	batches [][]Notification
	// queryErr が設定されている場合、QueryAfterはこのエラーを返す。
	queryErr error
	// deleteErr が設定されている場合、DeleteByIDsはこのエラーを返す。
	deleteErr error
	// deletedIDs は削除要求されたIDの記録。
	deletedIDs [][]int64
	// queryCount はQueryAfterの呼び出し回数。
	queryCount int
}

func (f *fakeEventSource) QueryAfter(_ context.Context, _ string, _ int64) ([]Notification, error) {
	f.queryCount++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeEventSource) DeleteByIDs(_ context.Context, _ string, ids []int64) error {
	f.deletedIDs = append(f.deletedIDs, ids)
	return f.deleteErr
}

// testStreamWriter はセッションの出力を記録するストリームライター。
type testStreamWriter struct {
	bytes.Buffer
	// flushCount はFlushの呼び出し回数。
	flushCount int
}

func (w *testStreamWriter) Flush() {
	w.flushCount++
}

// newTestSession はテスト用の短い寿命を持つセッションを生成する。
func newTestSession(store eventSource) *session {
	return &session{
		store:        store,
		resolver:     resolver{baseURL: "http://localhost:3000"},
		userID:       "user-1",
		cursor:       0,
		lifetime:     60 * time.Millisecond,
		pollInterval: 10 * time.Millisecond,
	}
}

// TestSessionIdleTermination は新着なしでのセッション終了を検証する。
func TestSessionIdleTermination(t *testing.T) {
	t.Parallel()

	t.Run("期限までハートビートのみ送信して正常終了すること", func(t *testing.T) {
		t.Parallel()

		store := &fakeEventSource{}
		w := &testStreamWriter{}
		sess := newTestSession(store)

		if err := sess.run(t.Context(), w); err != nil {
			t.Fatalf("run()でエラーが発生: %v", err)
		}

		body := w.String()
		if !strings.Contains(body, ": ping\n\n") {
			t.Errorf("ハートビートが送信されていない: %q", body)
		}
		if strings.Contains(body, "event:") {
			t.Errorf("データフレームが送信された: %q", body)
		}
		if store.queryCount < 2 {
			t.Errorf("ポーリング回数 = %d, want >= 2", store.queryCount)
		}
		if len(store.deletedIDs) != 0 {
			t.Errorf("アイドルセッションで削除が呼ばれた: %v", store.deletedIDs)
		}
	})
}

// TestSessionDelivery はバッチ配信とACKを検証する。
func TestSessionDelivery(t *testing.T) {
	t.Parallel()

	deliveryBatch := []Notification{
		{ID: 5, EventName: event.TypeTaskCreate, EventData: event.Data{Task: &event.TaskData{ID: 1, Title: "a", ProjectName: "p"}}, CreatedAt: 1700000000},
		{ID: 7, EventName: event.TypeTaskUpdate, EventData: event.Data{Task: &event.TaskData{ID: 2, Title: "b", ProjectName: "p"}}, CreatedAt: 1700000100},
	}

	t.Run("1バッチを配信して配信済みIDを削除しセッションが終了すること", func(t *testing.T) {
		t.Parallel()

		store := &fakeEventSource{batches: [][]Notification{deliveryBatch}}
		w := &testStreamWriter{}
		sess := newTestSession(store)

		start := time.Now()
		if err := sess.run(t.Context(), w); err != nil {
			t.Fatalf("run()でエラーが発生: %v", err)
		}

		// 配信後は期限を待たずに終了すること
		if elapsed := time.Since(start); elapsed > sess.lifetime/2 {
			t.Errorf("配信後すぐに終了していない: %v", elapsed)
		}

		body := w.String()
		if !strings.Contains(body, "event:notifications") && !strings.Contains(body, "event: notifications") {
			t.Errorf("notificationsイベントが送信されていない: %q", body)
		}
		if !strings.Contains(body, `"last_id":7`) {
			t.Errorf("カーソル値が含まれていない: %q", body)
		}

		if len(store.deletedIDs) != 1 || !slices.Equal(store.deletedIDs[0], []int64{5, 7}) {
			t.Errorf("削除されたID = %v, want [[5 7]]", store.deletedIDs)
		}
	})

	t.Run("削除に失敗してもセッションは正常終了すること", func(t *testing.T) {
		t.Parallel()

		// 配信済みバッチはクライアント側で適用済みのため、削除失敗は
		// 再配信（最低1回配信）として受容しエラーにはしない。
		store := &fakeEventSource{
			batches:   [][]Notification{deliveryBatch},
			deleteErr: errors.New("ストア停止"),
		}
		w := &testStreamWriter{}
		sess := newTestSession(store)

		if err := sess.run(t.Context(), w); err != nil {
			t.Fatalf("run()でエラーが発生: %v", err)
		}

		if !strings.Contains(w.String(), `"ids":[5,7]`) {
			t.Errorf("配信ペイロードが送信されていない: %q", w.String())
		}
	})
}

// TestSessionFailure はポーリング失敗と切断時の挙動を検証する。
func TestSessionFailure(t *testing.T) {
	t.Parallel()

	t.Run("ストアの読み取り失敗でエラー終了すること", func(t *testing.T) {
		t.Parallel()

		store := &fakeEventSource{queryErr: errors.New("ストア停止")}
		w := &testStreamWriter{}
		sess := newTestSession(store)

		if err := sess.run(t.Context(), w); err == nil {
			t.Fatal("ストア読み取り失敗に対してエラーが返らなかった")
		}

		// 何も削除されていないため通知は失われない
		if len(store.deletedIDs) != 0 {
			t.Errorf("読み取り失敗時に削除が呼ばれた: %v", store.deletedIDs)
		}
	})

	t.Run("クライアント切断で待機中のセッションが直ちに終了すること", func(t *testing.T) {
		t.Parallel()

		store := &fakeEventSource{}
		w := &testStreamWriter{}
		sess := newTestSession(store)
		sess.lifetime = 10 * time.Second
		sess.pollInterval = 10 * time.Second

		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := sess.run(ctx, w)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("切断後の終了に時間がかかりすぎている: %v", elapsed)
		}
	})
}
