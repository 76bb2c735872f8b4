package httpapi

import (
	"context"
	"net/http"

	"deckcore/pkg/domain"

	"github.com/gin-gonic/gin"
)

// CategoryRequest registers a category, optionally at a rank.
type CategoryRequest struct {
	Spec domain.CategorySpec `json:"spec" binding:"required"`
	Rank *int                `json:"rank" binding:"omitempty,gte=0"`
}

// RankRequest moves a category to a rank.
type RankRequest struct {
	Rank *int `json:"rank" binding:"required,gte=0"`
}

// OverrideRequest names the card to include or exclude.
type OverrideRequest struct {
	Key string `json:"key" binding:"required"`
}

func (h *Handler) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.svc.Deck().Categories()})
}

func (h *Handler) getCategory(c *gin.Context) {
	view, err := h.svc.Deck().Category(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) addCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Spec.Validate(); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.svc.AddCategory(c.Request.Context(), req.Spec, req.Rank)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) updateCategory(c *gin.Context) {
	var spec domain.CategorySpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		badRequest(c, err)
		return
	}
	if err := spec.Validate(); err != nil {
		badRequest(c, err)
		return
	}
	prior, err := h.svc.UpdateCategory(c.Request.Context(), c.Param("name"), spec)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prior": prior, "spec": spec})
}

func (h *Handler) removeCategory(c *gin.Context) {
	removed, err := h.svc.RemoveCategory(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "category not found", Code: "CATEGORY_NOT_FOUND"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) swapRank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.SwapCategoryRanks(c.Request.Context(), c.Param("name"), *req.Rank); err != nil {
		h.fail(c, err)
		return
	}
	h.listCategories(c)
}

func (h *Handler) include(c *gin.Context) {
	h.override(c, h.svc.Include)
}

func (h *Handler) exclude(c *gin.Context) {
	h.override(c, h.svc.Exclude)
}

func (h *Handler) override(c *gin.Context, apply func(ctx context.Context, name, key string) (bool, error)) {
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	name := c.Param("name")
	changed, err := apply(c.Request.Context(), name, req.Key)
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.svc.Deck().Category(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "category": view})
}
