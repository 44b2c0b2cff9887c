package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/familytree-backend/internal/platform/logger"
	"github.com/yungbote/familytree-backend/internal/services"
)

func TestNewWithConfig_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.DB.Driver = "sqlite"
	cfg.DB.SQLitePath = filepath.Join(dir, "family.db")
	cfg.Tree.WorkDir = dir

	a, err := NewWithConfig(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Nil(t, a.Clients.Redis)
	assert.Nil(t, a.Clients.Neo4j)

	ctx := context.Background()
	_, err = a.Services.Family.Marry(ctx, services.MarryInput{A: "A", B: "B"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/members/A/tree.txt", nil)
	rec := httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A (id=A)\n+ B (id=B)\n", rec.Body.String())

	rec = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "familytree_mutations_total"))
}
