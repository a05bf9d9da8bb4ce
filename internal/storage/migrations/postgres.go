package migrations

import (
	"context"
	"time"

	"findb/internal/storage/postgres"
)

type postgresTarget struct {
	pool *postgres.Pool
}

func (t postgresTarget) Init(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+VersionTable+` (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at BIGINT NOT NULL
		)`)
	return err
}

func (t postgresTarget) Applied(ctx context.Context) ([]int, error) {
	rows, err := t.pool.Query(ctx, `SELECT version FROM `+VersionTable+` ORDER BY version`)
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

func (t postgresTarget) Exec(ctx context.Context, stmt string) error {
	_, err := t.pool.Exec(ctx, stmt)
	return err
}

func (t postgresTarget) Record(ctx context.Context, m Migration, appliedAt time.Time) error {
	_, err := t.pool.Exec(ctx, `
		INSERT INTO `+VersionTable+` (version, name, applied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (version) DO NOTHING
	`, m.Version, m.Name, appliedAt.UnixMilli())
	return err
}

// RunPostgresMigrations applies the embedded Postgres schema versions the
// database has not recorded yet. Runs on every start of a job or the API.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	ms, err := Load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	_, err = Apply(ctx, postgresTarget{pool: pool}, ms, nil)
	return err
}
