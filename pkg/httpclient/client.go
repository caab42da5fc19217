package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client はストリームサーバーとの通信用HTTPクライアント。
// JSON APIの呼び出しとSSEストリームの接続をサポートする。
type Client struct {
	// httpClient はJSON API呼び出しに使用するHTTPクライアント。
	httpClient *http.Client
	// streamClient はストリーム接続に使用するHTTPクライアント。
	// セッションはサーバー側の設定時間（既定300秒）持続するため
	// タイムアウトを設定しない。
	streamClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
	// token はBearer認証に使用するJWTトークン。空の場合は付与しない。
	token string
}

// New は新しいHTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://localhost:8080"）を指定する。
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
		baseURL:      baseURL,
	}
}

// SetToken は以降のリクエストで使用するBearer認証トークンを設定する。
func (c *Client) SetToken(token string) {
	c.token = token
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// PutJSON は指定パスにJSONボディでPUTリクエストを送信する。
func (c *Client) PutJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, result)
}

// OpenStream は指定パスへSSEストリーム接続を開く。
// 接続の確立に成功した場合、レスポンスを返す。呼び出し側は
// ステータスコードを確認し、Bodyを必ずCloseすること。
// 4xx/5xxのレスポンスはエラーとして返し、Bodyはクローズ済みとなる。
func (c *Client) OpenStream(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("ストリームリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ストリーム接続に失敗: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("ストリーム接続エラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTPエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}
