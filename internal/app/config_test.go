package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("FAMILYTREE_CONFIG", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "keep", cfg.Tree.Cleanup)
	assert.Equal(t, "keyed", cfg.Tree.Naming)
	assert.Equal(t, 60*time.Second, cfg.Tree.StageTimeout)
	assert.Equal(t, 10, cfg.IDMaxAttempts)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "familytree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"port: 9000",
		"db:",
		"  driver: sqlite",
		"  sqlite_path: /var/lib/familytree/tree.db",
		"tree:",
		"  cleanup: intermediate",
		"  stage_timeout: 15s",
		"  converter_script: /opt/familytreemaker/familytreemaker.py",
		"allowed_origins:",
		"  - https://tree.example.org",
		"",
	}, "\n")), 0o644))

	t.Setenv("FAMILYTREE_CONFIG", path)
	t.Setenv("PORT", "9100")
	t.Setenv("TREE_ARTIFACT_NAMING", "UNIQUE")
	t.Setenv("TREE_STAGE_TIMEOUT", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "env wins over file")
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/var/lib/familytree/tree.db", cfg.DB.SQLitePath)
	assert.Equal(t, "intermediate", cfg.Tree.Cleanup)
	assert.Equal(t, "unique", cfg.Tree.Naming)
	assert.Equal(t, 30*time.Second, cfg.Tree.StageTimeout)
	assert.Equal(t, "/opt/familytreemaker/familytreemaker.py", cfg.Tree.ConverterScript)
	assert.Equal(t, []string{"https://tree.example.org"}, cfg.AllowedOrigins)
	assert.Equal(t, "python3", cfg.Tree.ConverterBin, "unset keys keep defaults")
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]string{
		"TREE_CLEANUP":                "sometimes",
		"TREE_ARTIFACT_NAMING":        "random",
		"DB_DRIVER":                   "mysql",
		"TREE_MAX_CONCURRENT_RENDERS": "0",
		"ID_MAX_ATTEMPTS":             "0",
		"CORS_ALLOWED_ORIGINS":        "not a url",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("FAMILYTREE_CONFIG", "")
			t.Setenv(key, val)
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_PostgresNeedsHostOrDSN(t *testing.T) {
	t.Setenv("FAMILYTREE_CONFIG", "")
	cfg := defaultConfig()
	cfg.DB.Host = ""
	require.Error(t, cfg.Validate())

	cfg.DB.URL = "postgres://u:p@db:5432/familytree"
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("FAMILYTREE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := LoadConfig()
	require.Error(t, err)
}
