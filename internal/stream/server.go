package stream

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/pulse/pkg/event"
	"github.com/nao1215/pulse/pkg/middleware"
)

// Server はストリーム配信サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの動作設定。
	cfg Config
	// store は通知イベントとチャネル設定のストア。
	store *Store
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewServer は新しいストリームサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ適用を行う。
func NewServer(cfg Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.BaseURL}))

	s := &Server{
		router: router,
		cfg:    cfg,
		store:  NewStore(sqlDB),
		db:     sqlDB,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 開発用トークン発行（認証不要）
	auth := s.router.Group("/auth")
	{
		auth.POST("/dev-token", s.handleDevToken())
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	{
		notifications := api.Group("/notifications")
		{
			// 通知のストリーム配信
			notifications.GET("/stream", s.handleStream())
			// 有効な通知チャネルの取得
			notifications.GET("/channels", s.handleGetChannels())
			// 通知チャネル設定の更新
			notifications.PUT("/channels", s.handleSetChannels())
		}

		// 通知登録（内部API - イベント発生元のサービスから呼び出される）
		internal := api.Group("/internal")
		{
			internal.POST("/notifications", s.handleSend())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "stream"})
	})
}

// handleStream は認証済みユーザーへSSEストリームを配信するハンドラを返す。
// クライアントはlast_idクエリパラメータで受信済みカーソルを申告する。
func (s *Server) handleStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusForbidden, gin.H{"message": "アクセスが禁止されています"})
			return
		}

		channels, err := s.store.EnabledChannels(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "チャネル設定の取得に失敗しました"})
			log.Printf("チャネル設定取得エラー (user_id=%s): %v", userID, err)
			return
		}
		if !slices.Contains(channels, ChannelBrowser) {
			c.JSON(http.StatusNoContent, gin.H{"message": "通知が無効になっています"})
			return
		}

		// 不正なカーソルはキューの先頭（0）として扱う
		lastID, err := strconv.ParseInt(c.DefaultQuery("last_id", "0"), 10, 64)
		if err != nil || lastID < 0 {
			lastID = 0
		}

		// ストリーム用ヘッダー。中間プロキシのバッファリングも無効化する
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Writer.WriteHeader(http.StatusOK)
		c.Writer.Flush()

		sess := &session{
			store:        s.store,
			resolver:     resolver{baseURL: s.cfg.BaseURL},
			userID:       userID,
			cursor:       lastID,
			lifetime:     s.cfg.SessionLifetime,
			pollInterval: s.cfg.PollInterval,
		}
		if err := sess.run(c.Request.Context(), c.Writer); err != nil {
			// クライアント切断やポーリング失敗。接続はこの時点で閉じられる
			log.Printf("ストリームセッション終了 (user_id=%s): %v", userID, err)
		}
	}
}

// channelsResponse はチャネル設定のJSONレスポンス構造。
type channelsResponse struct {
	// Channels は有効化された通知チャネル名の一覧。
	Channels []string `json:"channels"`
}

// handleGetChannels は認証済みユーザーの通知チャネル設定を返すハンドラ。
func (s *Server) handleGetChannels() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		channels, err := s.store.EnabledChannels(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チャネル設定の取得に失敗しました"})
			log.Printf("チャネル設定取得エラー: %v", err)
			return
		}
		if channels == nil {
			channels = []string{}
		}

		c.JSON(http.StatusOK, channelsResponse{Channels: channels})
	}
}

// setChannelsRequest はチャネル設定更新リクエストのJSON構造。
type setChannelsRequest struct {
	// Channels は有効化する通知チャネル名の一覧。空の場合は全チャネル無効。
	Channels []string `json:"channels"`
}

// handleSetChannels は認証済みユーザーの通知チャネル設定を置き換えるハンドラ。
func (s *Server) handleSetChannels() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req setChannelsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		for _, ch := range req.Channels {
			if !KnownChannel(ch) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("未知のチャネルです: %s", ch)})
				return
			}
		}

		if err := s.store.SetChannels(c.Request.Context(), userID, req.Channels); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チャネル設定の更新に失敗しました"})
			log.Printf("チャネル設定更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "チャネル設定を更新しました"})
	}
}

// sendRequest は通知登録リクエストのJSON構造。
type sendRequest struct {
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id" binding:"required"`
	// EventName は通知の元となったドメインイベント名。
	EventName string `json:"event_name" binding:"required"`
	// EventData はイベントの構造化ペイロード。
	EventData event.Data `json:"event_data"`
}

// handleSend は通知イベントをストアに登録するハンドラを返す。
// 内部API（タスク管理サービス等のイベント発生元から呼び出される）。
// 登録された通知は対象ユーザーの次のポーリングで配信される。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if !event.KnownType(event.Type(req.EventName)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("未知のイベント名です: %s", req.EventName)})
			return
		}

		id, err := s.store.Insert(c.Request.Context(), req.UserID, event.Type(req.EventName), req.EventData)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の登録に失敗しました"})
			log.Printf("通知登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":      id,
			"message": "通知を登録しました",
		})
	}
}

// devTokenRequest は開発用トークン発行リクエストのJSON構造。
type devTokenRequest struct {
	// Email は発行するトークンに含めるメールアドレス。省略可能。
	Email string `json:"email"`
}

// handleDevToken は開発用JWTトークンを発行するハンドラを返す。
// 新規ユーザーIDを採番し、ブラウザ通知チャネルを有効化した状態で返す。
// 本番環境では無効化すべき。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		// ボディは省略可能
		_ = c.ShouldBindJSON(&req)

		email := req.Email
		if email == "" {
			email = "dev@localhost"
		}

		userID := uuid.New().String()
		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, userID, email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("開発用トークン発行エラー: %v", err)
			return
		}

		// 発行直後からストリームを利用できるようにブラウザチャネルを有効化する
		if err := s.store.SetChannels(c.Request.Context(), userID, []string{ChannelBrowser}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チャネル設定の初期化に失敗しました"})
			log.Printf("チャネル設定初期化エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":   token,
			"user_id": userID,
		})
	}
}
