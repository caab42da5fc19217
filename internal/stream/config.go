package stream

import (
	"os"
	"strconv"
	"time"
)

// Config はストリームサーバーの動作設定。
// セッションの寿命やポーリング間隔はプロセス全体の状態ではなく、
// この構造体を通じて各セッションへ明示的に渡される。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// BaseURL は通知の遷移先URLの生成とCORS許可に使用する
	// フロントエンドのベースURL。
	BaseURL string
	// SessionLifetime は1ストリームセッションの最大持続時間。
	// 期限を過ぎたセッションは終了し、クライアントが再接続する。
	SessionLifetime time.Duration
	// PollInterval はセッションがストアを確認する間隔。
	// セッションあたりのクエリレートはこの間隔で制限される。
	PollInterval time.Duration
}

// ConfigFromEnv は環境変数からConfigを構築する。未設定の項目には
// 開発用の既定値を使用する。
func ConfigFromEnv(port string) Config {
	return Config{
		Port:            port,
		DBPath:          getEnvOr("STREAM_DB_PATH", "/data/stream.db"),
		JWTSecret:       getEnvOr("JWT_SECRET", "dev-secret-key"),
		BaseURL:         getEnvOr("FRONTEND_URL", "http://localhost:3000"),
		SessionLifetime: getEnvSecondsOr("STREAM_SESSION_LIFETIME", 300*time.Second),
		PollInterval:    getEnvSecondsOr("STREAM_POLL_INTERVAL", 4*time.Second),
	}
}

// getEnvOr は環境変数の値を返す。未設定の場合はfallbackを返す。
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvSecondsOr は環境変数を秒数として解釈した時間を返す。
// 未設定または不正な値の場合はfallbackを返す。
func getEnvSecondsOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
