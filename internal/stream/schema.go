package stream

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/pulse/pkg/migration"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// initSchema は通知ストアのスキーマをマイグレーションで適用する。
func initSchema(db *sql.DB) error {
	if err := migration.Run(db, migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
