package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/familytree-backend/internal/domain/family"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LOG_MODE", "prod")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "family.db"))
	t.Setenv("TREE_WORK_DIR", dir)
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("NEO4J_URI", "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(openApp)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_MutationsAndQueries(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "marry", "A", "B", "--id", "M1")
	require.NoError(t, err)
	assert.Equal(t, "A and B are now married (marriage M1)\n", out)

	_, err = run(t, "adopt", "A", "C")
	require.NoError(t, err)

	out, err = run(t, "partner", "B")
	require.NoError(t, err)
	assert.Equal(t, "B is married to A (A)\n", out)

	out, err = run(t, "children", "A")
	require.NoError(t, err)
	assert.Equal(t, "A has 1 children:\n  C (C)\n", out)

	out, err = run(t, "parent", "C")
	require.NoError(t, err)
	assert.Equal(t, "C's parent is A (A)\n", out)

	out, err = run(t, "tree", "A", "--text")
	require.NoError(t, err)
	assert.Equal(t, "A (id=A)\n+ B (id=B)\n\tC (id=C)\n", out)

	_, err = run(t, "disown", "A", "C")
	require.NoError(t, err)
	out, err = run(t, "children", "A")
	require.NoError(t, err)
	assert.Equal(t, "A has no children\n", out)

	_, err = run(t, "divorce", "A")
	require.NoError(t, err)
	_, err = run(t, "partner", "A")
	assert.True(t, family.IsCode(err, family.CodeNotFound))
}

func TestCLI_RuleViolationsSurface(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "marry", "A", "A")
	assert.ErrorIs(t, err, family.ErrSelfRelation)

	_, err = run(t, "divorce", "A")
	assert.ErrorIs(t, err, family.ErrNotMarried)

	_, err = run(t, "tree", "nobody", "--text")
	assert.ErrorIs(t, err, family.ErrNoFamily)

	_, err = run(t, "marry", "A")
	assert.Error(t, err)
}

func TestCLI_GedcomWritesFile(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, "marry", "A", "B")
	require.NoError(t, err)

	dst := filepath.Join(dir, "out.ged")
	out, err := run(t, "gedcom", "A", "-o", dst)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+dst+"\n", out)

	body, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(body), "0 HEAD")
	assert.Contains(t, string(body), "0 TRLR")

	out, err = run(t, "gedcom", "A", "-o", "-")
	require.NoError(t, err)
	assert.Equal(t, string(body), out)
}
