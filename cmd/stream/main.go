// ストリーム配信サービスのエントリポイント。
// 蓄積された通知イベントをユーザーごとのSSEストリームとして配信する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/pulse/internal/stream"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server, err := stream.NewServer(stream.ConfigFromEnv(port))
	if err != nil {
		log.Fatalf("ストリームサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ストリームサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("ストリームサービスの起動に失敗: %v", err)
	}
}
