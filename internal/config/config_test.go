package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, DefaultDSN, cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, ".", cfg.Dolt.Repository.Path)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("FINDB_PORT", "9090")
	t.Setenv("FINDB_DSN", "postgres://u:p@db:5432/findb")

	cfg, err := Parse([]byte(`
server:
  host: 0.0.0.0
  port: ${FINDB_PORT}
  shutdown_timeout: 5s
database:
  dsn: ${FINDB_DSN}
dolt:
  repository:
    path: ${FINDB_REPO:/data/findb}
    start_server: dolt sql-server
`))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres://u:p@db:5432/findb", cfg.Database.DSN)
	assert.Equal(t, "/data/findb", cfg.Dolt.Repository.Path)
	assert.Equal(t, "dolt sql-server", cfg.Dolt.Repository.StartServer)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Port")

	_, err = Parse([]byte("server: [broken"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8181\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINDB_TEST_A=from-file\nFINDB_TEST_B=from-file\n"), 0o644))

	t.Setenv("FINDB_TEST_B", "preset")
	os.Unsetenv("FINDB_TEST_A")
	t.Cleanup(func() { os.Unsetenv("FINDB_TEST_A") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("FINDB_TEST_A"))
	assert.Equal(t, "preset", os.Getenv("FINDB_TEST_B"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FINDB_SET", "x")
	assert.Equal(t, "x-default-", ExpandEnv("${FINDB_SET}-${FINDB_UNSET_VAR:default}-${FINDB_UNSET_VAR}"))
}
