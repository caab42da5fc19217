// Package httpclient はストリームサーバーとのHTTP通信を行うクライアントを提供する。
//
// 通知の登録などのJSON API呼び出しと、クライアントエージェントが使用する
// SSEストリーム接続の確立をサポートする。
package httpclient
