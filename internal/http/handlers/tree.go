package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/http/response"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
	"github.com/yungbote/familytree-backend/internal/services"
)

type TreeHandler struct {
	tree services.TreeService
	log  *logger.Logger
}

func NewTreeHandler(tree services.TreeService, log *logger.Logger) *TreeHandler {
	return &TreeHandler{tree: tree, log: log.With("handler", "TreeHandler")}
}

// treeRequest reads ?depth=&global=&scope=. A missing depth is unbounded.
func treeRequest(c *gin.Context) (services.TreeRequest, error) {
	req := services.TreeRequest{
		RootID: c.Param("id"),
		Scope:  strings.TrimSpace(c.Query("scope")),
	}
	if raw := strings.TrimSpace(c.Query("depth")); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return req, family.NewError(family.CodeValidation, "tree", "depth must be an integer", err)
		}
		req.Depth = d
	}
	if raw := strings.TrimSpace(c.Query("global")); raw != "" {
		g, err := strconv.ParseBool(raw)
		if err != nil {
			return req, family.NewError(family.CodeValidation, "tree", "global must be a boolean", err)
		}
		req.Global = g
	}
	return req, nil
}

// GET /api/members/:id/tree.png
func (h *TreeHandler) Image(c *gin.Context) {
	req, err := treeRequest(c)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	res, err := h.tree.RenderImage(c.Request.Context(), req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	defer func() {
		if err := res.Release(); err != nil {
			h.log.Warn("release render artifacts failed", "root_id", req.RootID, "error", err)
		}
	}()
	c.File(res.ImagePath)
}

// GET /api/members/:id/tree.ged
func (h *TreeHandler) Gedcom(c *gin.Context) {
	req, err := treeRequest(c)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	name, body, err := h.tree.Gedcom(c.Request.Context(), req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	c.Data(http.StatusOK, "text/vnd.familysearch.gedcom; charset=utf-8", []byte(body))
}

// GET /api/members/:id/tree.txt
func (h *TreeHandler) Text(c *gin.Context) {
	req, err := treeRequest(c)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	text, err := h.tree.TreeText(c.Request.Context(), req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}
