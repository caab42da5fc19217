package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// 認証済みユーザーの情報をハンドラへ伝播するために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// 開発用トークン発行エンドポイントおよびテストで使用する。
func GenerateJWT(secret, userID, email string) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pulse-stream",
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" と "email" を設定する。
// トークンはAuthorizationヘッダーのBearer形式、またはストリーム接続用に
// クエリパラメータ "token" で受け付ける（EventSourceは任意ヘッダーを
// 付与できないため）。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			var found bool
			tokenString, found = strings.CutPrefix(authHeader, "Bearer ")
			if !found {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Bearer トークン形式が不正です",
				})
				return
			}
		} else {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証トークンが必要です",
			})
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
