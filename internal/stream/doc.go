// Package stream はサーバープッシュ通知配信サービスの内部実装を提供する。
//
// ユーザーごとにキューイングされた通知イベントを、カーソルベースの
// SSEストリームで接続中のクライアントへ配信する。セッションは一定間隔で
// ストアをポーリングし、最初のバッチを配信した時点で終了する。クライアントは
// 受信済みカーソル（last_id）を添えて再接続することで続きを受信する。
//
// 主な機能:
//   - 通知イベントの登録（内部API）
//   - カーソル以降の通知のストリーム配信と配信済みイベントの削除（ACK）
//   - ユーザーごとの通知チャネル設定の管理
//
// 配信は最低1回（at-least-once）であり、削除の失敗時には同じバッチが
// 再配信されうる。クライアント側での重複排除は行わない。
package stream
