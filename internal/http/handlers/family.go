package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/http/response"
	"github.com/yungbote/familytree-backend/internal/services"
)

type FamilyHandler struct {
	family services.FamilyService
}

func NewFamilyHandler(family services.FamilyService) *FamilyHandler {
	return &FamilyHandler{family: family}
}

type marryRequest struct {
	A          string `json:"a" binding:"required"`
	B          string `json:"b" binding:"required"`
	Scope      string `json:"scope"`
	MarriageID string `json:"marriage_id"`
}

type parentRequest struct {
	Parent string `json:"parent" binding:"required"`
	Child  string `json:"child" binding:"required"`
}

type profileRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=100"`
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondDomainError(c, family.NewError(family.CodeValidation, "bind", "invalid request body", err))
		return false
	}
	return true
}

// POST /api/marriages
func (h *FamilyHandler) Marry(c *gin.Context) {
	var req marryRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.family.Marry(c.Request.Context(), services.MarryInput{
		A:          req.A,
		B:          req.B,
		Scope:      req.Scope,
		MarriageID: req.MarriageID,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"marriage_id": id})
}

// DELETE /api/members/:id/marriage
func (h *FamilyHandler) Divorce(c *gin.Context) {
	if err := h.family.Divorce(c.Request.Context(), c.Param("id")); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/parents
func (h *FamilyHandler) Adopt(c *gin.Context) {
	var req parentRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.family.Adopt(c.Request.Context(), req.Parent, req.Child); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"parent": req.Parent, "child": req.Child})
}

// DELETE /api/parents
func (h *FamilyHandler) Disown(c *gin.Context) {
	var req parentRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.family.Disown(c.Request.Context(), req.Parent, req.Child); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/members/:id
func (h *FamilyHandler) Remove(c *gin.Context) {
	if err := h.family.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /api/members/:id/profile
func (h *FamilyHandler) SetProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.family.SetProfile(c.Request.Context(), c.Param("id"), req.DisplayName); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"id": c.Param("id"), "display_name": req.DisplayName})
}

// GET /api/members/:id/partner
func (h *FamilyHandler) Partner(c *gin.Context) {
	n, err := h.family.Partner(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"partner": n})
}

// GET /api/members/:id/children
func (h *FamilyHandler) Children(c *gin.Context) {
	out, err := h.family.Children(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"children": out})
}

// GET /api/members/:id/parent
func (h *FamilyHandler) Parent(c *gin.Context) {
	n, err := h.family.Parent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"parent": n})
}
