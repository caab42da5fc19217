package migration

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteデータベースを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("マイグレーションが順序通り適用されること", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"migrations/000002_add_index.up.sql": &fstest.MapFile{
				Data: []byte("CREATE INDEX idx_items_name ON items(name);"),
			},
			"migrations/000001_create_items.up.sql": &fstest.MapFile{
				Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);"),
			},
		}

		db := openTestDB(t)
		if err := Run(db, fsys, "migrations"); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		// テーブルとインデックスが作成されていること
		if _, err := db.Exec("INSERT INTO items (name) VALUES ('test')"); err != nil {
			t.Errorf("作成されたテーブルへの挿入に失敗: %v", err)
		}

		// バージョンが記録されていること
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 2 {
			t.Errorf("適用済みマイグレーション数 = %d, want 2", count)
		}
	})

	t.Run("適用済みのマイグレーションはスキップされること", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"migrations/000001_create_items.up.sql": &fstest.MapFile{
				Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);"),
			},
		}

		db := openTestDB(t)
		if err := Run(db, fsys, "migrations"); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}

		// 2回目の適用ではCREATE TABLEが再実行されずエラーにならない
		if err := Run(db, fsys, "migrations"); err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
	})

	t.Run("不正なSQLを含むマイグレーションはエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"migrations/000001_broken.up.sql": &fstest.MapFile{
				Data: []byte("CREATE TABLE;"),
			},
		}

		db := openTestDB(t)
		if err := Run(db, fsys, "migrations"); err == nil {
			t.Fatal("不正なSQLに対してエラーが返らなかった")
		}

		// 失敗したマイグレーションのバージョンは記録されないこと
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("適用済みマイグレーション数 = %d, want 0", count)
		}
	})

	t.Run("命名規則に合わないファイルは無視されること", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"migrations/000001_create_items.up.sql": &fstest.MapFile{
				Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);"),
			},
			"migrations/README.md": &fstest.MapFile{
				Data: []byte("# migrations"),
			},
			"migrations/notes.up.sql": &fstest.MapFile{
				Data: []byte("INVALID"),
			},
		}

		db := openTestDB(t)
		if err := Run(db, fsys, "migrations"); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 1 {
			t.Errorf("適用済みマイグレーション数 = %d, want 1", count)
		}
	})
}
