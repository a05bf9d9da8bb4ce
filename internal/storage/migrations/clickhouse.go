package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	chstore "findb/internal/storage/clickhouse"
)

type clickhouseTarget struct {
	conn *chstore.Conn
}

func (t clickhouseTarget) Init(ctx context.Context) error {
	return t.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+VersionTable+` (
			version    UInt32,
			name       String,
			applied_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(applied_at)
		ORDER BY version`)
}

func (t clickhouseTarget) Applied(ctx context.Context) ([]int, error) {
	rows, err := t.conn.Query(ctx, `SELECT version FROM `+VersionTable+` FINAL ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v uint32
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, int(v))
	}
	return versions, rows.Err()
}

func (t clickhouseTarget) Exec(ctx context.Context, stmt string) error {
	return t.conn.Exec(ctx, stmt)
}

func (t clickhouseTarget) Record(ctx context.Context, m Migration, appliedAt time.Time) error {
	return t.conn.Exec(ctx,
		`INSERT INTO `+VersionTable+` (version, name, applied_at) VALUES (?, ?, ?)`,
		uint32(m.Version), m.Name, appliedAt)
}

// RunClickhouseMigrations creates the database named in dsn if needed and
// applies the embedded ClickHouse schema versions it has not recorded yet.
// The returned connection targets that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	ms, err := Load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if _, err := Apply(ctx, clickhouseTarget{conn: conn}, ms, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// databaseFromDSN returns the path component of a clickhouse:// DSN.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
