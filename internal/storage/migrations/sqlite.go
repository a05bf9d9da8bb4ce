package migrations

import (
	"context"
	"time"

	"findb/internal/storage/sqlite"
)

type sqliteTarget struct {
	db *sqlite.DB
}

func (t sqliteTarget) Init(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+VersionTable+` (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`)
	return err
}

func (t sqliteTarget) Applied(ctx context.Context) ([]int, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT version FROM `+VersionTable+` ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (t sqliteTarget) Exec(ctx context.Context, stmt string) error {
	_, err := t.db.ExecContext(ctx, stmt)
	return err
}

func (t sqliteTarget) Record(ctx context.Context, m Migration, appliedAt time.Time) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+VersionTable+` (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, appliedAt.UnixMilli())
	return err
}

// RunSqliteMigrations applies the embedded SQLite schema versions the
// database file has not recorded yet.
func RunSqliteMigrations(ctx context.Context, db *sqlite.DB) error {
	ms, err := Load(SqliteFS, "sqlite")
	if err != nil {
		return err
	}
	_, err = Apply(ctx, sqliteTarget{db: db}, ms, nil)
	return err
}
