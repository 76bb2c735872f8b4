package httpapi

import (
	"net/http"

	"deckcore/pkg/domain"

	"github.com/gin-gonic/gin"
)

// HandRequest deals a new hand.
type HandRequest struct {
	Size *int `json:"size" binding:"required,gte=0"`
}

// HandResponse shows the visible cards and the remaining pool size.
type HandResponse struct {
	Cards    []domain.Card `json:"cards"`
	Pool     int           `json:"pool"`
	Excluded []string      `json:"excluded"`
}

func (h *Handler) handResponse(c *gin.Context) {
	hand := h.svc.Hand()
	c.JSON(http.StatusOK, HandResponse{
		Cards:    hand.Cards(),
		Pool:     hand.PoolSize(),
		Excluded: hand.Excluded(),
	})
}

func (h *Handler) getHand(c *gin.Context) {
	h.handResponse(c)
}

func (h *Handler) newHand(c *gin.Context) {
	var req HandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.svc.NewHand(c.Request.Context(), *req.Size); err != nil {
		h.fail(c, err)
		return
	}
	h.handResponse(c)
}

func (h *Handler) mulligan(c *gin.Context) {
	if _, err := h.svc.Mulligan(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.handResponse(c)
}

func (h *Handler) draw(c *gin.Context) {
	if _, err := h.svc.Draw(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.handResponse(c)
}

func (h *Handler) handExclude(c *gin.Context) {
	changed := h.svc.HandExclude(c.Param("key"))
	c.JSON(http.StatusOK, gin.H{"changed": changed, "excluded": h.svc.Hand().Excluded()})
}

func (h *Handler) handInclude(c *gin.Context) {
	changed := h.svc.HandInclude(c.Param("key"))
	c.JSON(http.StatusOK, gin.H{"changed": changed, "excluded": h.svc.Hand().Excluded()})
}
