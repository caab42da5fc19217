package agent

import (
	"os"
	"path/filepath"
	"testing"
)

// TestCursorLoad はカーソルファイルの読み込みを検証する。
func TestCursorLoad(t *testing.T) {
	t.Parallel()

	t.Run("ファイルが存在しない場合はカーソル0から開始する", func(t *testing.T) {
		t.Parallel()

		c := LoadCursor(filepath.Join(t.TempDir(), "cursor"))
		if c.Current() != 0 {
			t.Errorf("Current() = %d, want 0", c.Current())
		}
	})

	t.Run("保存済みの値を読み込める", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "cursor")
		if err := os.WriteFile(path, []byte("42\n"), 0o600); err != nil {
			t.Fatalf("テストファイルの作成に失敗: %v", err)
		}

		c := LoadCursor(path)
		if c.Current() != 42 {
			t.Errorf("Current() = %d, want 42", c.Current())
		}
	})

	t.Run("内容が不正な場合はカーソル0から開始する", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "cursor")
		if err := os.WriteFile(path, []byte("abc"), 0o600); err != nil {
			t.Fatalf("テストファイルの作成に失敗: %v", err)
		}

		c := LoadCursor(path)
		if c.Current() != 0 {
			t.Errorf("Current() = %d, want 0", c.Current())
		}
	})
}

// TestCursorStore はカーソルの保存と単調増加の制約を検証する。
func TestCursorStore(t *testing.T) {
	t.Parallel()

	t.Run("保存した値が再読み込みで復元される", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "cursor")
		c := LoadCursor(path)

		if err := c.Store(7); err != nil {
			t.Fatalf("Store()でエラーが発生: %v", err)
		}

		reloaded := LoadCursor(path)
		if reloaded.Current() != 7 {
			t.Errorf("再読み込み後のCurrent() = %d, want 7", reloaded.Current())
		}
	})

	t.Run("現在値以下のIDは無視される", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "cursor")
		c := LoadCursor(path)

		if err := c.Store(10); err != nil {
			t.Fatalf("Store()でエラーが発生: %v", err)
		}
		if err := c.Store(5); err != nil {
			t.Fatalf("Store()でエラーが発生: %v", err)
		}

		if c.Current() != 10 {
			t.Errorf("Current() = %d, want 10", c.Current())
		}
		if reloaded := LoadCursor(path); reloaded.Current() != 10 {
			t.Errorf("再読み込み後のCurrent() = %d, want 10", reloaded.Current())
		}
	})
}
