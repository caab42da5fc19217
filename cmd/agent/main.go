// 通知受信エージェントのエントリポイント。
// ストリームサーバーに接続して通知を受信し、端末に表示する。
// Enterキーの入力で未確認カウンタをリセットする。
package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/pulse/pkg/agent"
	"github.com/nao1215/pulse/pkg/httpclient"
)

func main() {
	serverURL := os.Getenv("PULSE_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	token := os.Getenv("PULSE_TOKEN")
	if token == "" {
		log.Fatal("環境変数PULSE_TOKENにアクセストークンを設定してください")
	}
	cursorPath := os.Getenv("PULSE_CURSOR_FILE")
	if cursorPath == "" {
		cursorPath = ".pulse-cursor"
	}

	client := httpclient.New(serverURL)
	client.SetToken(token)

	presenter := agent.NewConsolePresenter(os.Stdout)
	a := agent.New(client, presenter, agent.LoadCursor(cursorPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Enter入力を「画面に注意を向けた」操作として未確認カウンタをリセットする
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			presenter.ClearUnseen()
		}
	}()

	log.Printf("通知エージェントを起動します: %s", serverURL)
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("通知エージェントが異常終了しました: %v", err)
	}
}
