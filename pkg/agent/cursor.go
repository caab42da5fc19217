package agent

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Cursor は最後に受信した通知IDをファイルへ永続化するカーソル。
// エージェントの再起動をまたいで受信位置を保持する。
type Cursor struct {
	// mu は現在値とファイルへの排他アクセスを保証する。
	mu sync.Mutex
	// path はカーソルファイルのパス。
	path string
	// current は最後に保存した通知ID。
	current int64
}

// LoadCursor は指定パスからカーソルを読み込む。
// ファイルが存在しない、または内容が不正な場合はカーソル0から開始する。
func LoadCursor(path string) *Cursor {
	c := &Cursor{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || id < 0 {
		return c
	}
	c.current = id
	return c
}

// Current は現在のカーソル値を返す。未受信の場合は0。
func (c *Cursor) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Store はカーソル値を更新してファイルへ書き込む。
// カーソルは単調増加であり、現在値以下のIDは無視される。
// 書き込みは一時ファイル経由のリネームで行い、中断しても破損しない。
func (c *Cursor) Store(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id <= c.current {
		return nil
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(id, 10)), 0o600); err != nil {
		return fmt.Errorf("カーソルファイルの書き込みに失敗: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("カーソルファイルの置き換えに失敗: %w", err)
	}

	c.current = id
	return nil
}
