package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

const sqliteDialect = "sqlite3"

//go:embed sql/*.sql
var files embed.FS

// Up runs all pending embedded SQL migrations.
func Up(db *sql.DB) error {
	goose.SetBaseFS(files)
	if err := goose.SetDialect(sqliteDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}

	return nil
}
