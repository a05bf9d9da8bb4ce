// Package migrations applies the embedded schema of every storage backend
// and records which versions a database already has.
package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// VersionTable records the applied migrations of a database.
const VersionTable = "schema_migrations"

// Migration is one embedded SQL file named NNN_description.sql.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// Target is a database the migrations run against.
type Target interface {
	// Init creates VersionTable if it does not exist.
	Init(ctx context.Context) error
	// Applied returns the recorded versions.
	Applied(ctx context.Context) ([]int, error)
	Exec(ctx context.Context, stmt string) error
	Record(ctx context.Context, m Migration, appliedAt time.Time) error
}

var defaultLogger = log.New(os.Stdout, "[migrations] ", log.LstdFlags)

// Load reads the .sql files of dir in fsys ordered by version.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations %s: %w", dir, err)
	}

	var ms []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, err := parseVersion(name)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, prev, name)
		}
		seen[version] = name

		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		stmts, err := splitStatements(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse migration %s: %w", name, err)
		}
		ms = append(ms, Migration{Version: version, Name: name, Statements: stmts})
	}

	sort.Slice(ms, func(i, j int) bool { return ms[i].Version < ms[j].Version })
	return ms, nil
}

func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s: name must start with NNN_", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("migration %s: bad version %q", name, prefix)
	}
	return v, nil
}

// Apply runs the migrations target has not recorded yet, in version order,
// and records each one after its last statement succeeded. It returns the
// versions applied by this call.
func Apply(ctx context.Context, target Target, ms []Migration, logger *log.Logger) ([]int, error) {
	if logger == nil {
		logger = defaultLogger
	}
	if err := target.Init(ctx); err != nil {
		return nil, fmt.Errorf("create %s: %w", VersionTable, err)
	}
	recorded, err := target.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", VersionTable, err)
	}
	done := make(map[int]bool, len(recorded))
	for _, v := range recorded {
		done[v] = true
	}

	var applied []int
	for _, m := range ms {
		if done[m.Version] {
			continue
		}
		for _, stmt := range m.Statements {
			if err := target.Exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		if err := target.Record(ctx, m, time.Now()); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		logger.Printf("applied migration %s", m.Name)
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// ErrUnterminatedString is returned for SQL with an unclosed quote.
var ErrUnterminatedString = errors.New("unterminated string literal")

// splitStatements cuts sql at semicolons outside single-quoted literals and
// drops -- comments. The clickhouse and sqlite drivers run one statement per Exec.
func splitStatements(sql string) ([]string, error) {
	var (
		stmts []string
		cur   strings.Builder
		quote bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case quote:
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
					continue
				}
				quote = false
			}
		case ch == '\'':
			quote = true
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	if quote {
		return nil, ErrUnterminatedString
	}
	flush()
	return stmts, nil
}
