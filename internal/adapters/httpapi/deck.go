package httpapi

import (
	"errors"
	"net/http"

	"deckcore/internal/core"
	"deckcore/internal/deck"
	"deckcore/pkg/domain"

	"github.com/gin-gonic/gin"
)

// DeckResponse is the body of GET /api/v1/deck.
type DeckResponse struct {
	DeckID   string       `json:"deck_id"`
	Total    int          `json:"total"`
	Distinct int          `json:"distinct"`
	Entries  []deck.Entry `json:"entries"`
}

// CardRequest adds copies of one card.
type CardRequest struct {
	Key   string `json:"key" binding:"required"`
	Count int    `json:"count" binding:"required,gte=1"`
}

// CardsRequest adds several cards at once; unknown keys fail the batch.
type CardsRequest struct {
	Cards []CardRequest `json:"cards" binding:"required,min=1,dive"`
}

// SetCountRequest sets the copy count of a card.
type SetCountRequest struct {
	Count *int `json:"count" binding:"required,gte=0"`
}

// SortRequest reorders the master list.
type SortRequest struct {
	By        string `json:"by" binding:"required,oneof=name date attribute"`
	Attribute string `json:"attribute" binding:"required_if=By attribute"`
}

func (h *Handler) getDeck(c *gin.Context) {
	d := h.svc.Deck()
	c.JSON(http.StatusOK, DeckResponse{
		DeckID:   h.svc.DeckID(),
		Total:    d.Total(),
		Distinct: d.Size(),
		Entries:  d.Entries(),
	})
}

func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats(c.DefaultQuery("attr", "type")))
}

func (h *Handler) clearDeck(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) sortDeck(c *gin.Context) {
	var req SortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Sort(c.Request.Context(), core.SortOrder(req.By), req.Attribute); err != nil {
		h.fail(c, err)
		return
	}
	h.getDeck(c)
}

func (h *Handler) addCards(c *gin.Context) {
	var req CardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	items := make([]core.Quantity, 0, len(req.Cards))
	for _, card := range req.Cards {
		items = append(items, core.Quantity{Key: card.Key, Count: card.Count})
	}
	created, err := h.svc.AddCards(c.Request.Context(), items)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "total": h.svc.Deck().Total()})
}

func (h *Handler) getCard(c *gin.Context) {
	e, ok := h.svc.Deck().Entry(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "card not in deck", Code: "CARD_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) setCard(c *gin.Context) {
	var req SetCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	key := c.Param("key")
	existed, err := h.svc.SetCard(c.Request.Context(), key, *req.Count)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "existed": existed, "count": h.svc.Deck().Count(key)})
}

func (h *Handler) removeCard(c *gin.Context) {
	n, err := queryInt(c, "count", 1)
	if err != nil || n < 1 {
		badRequest(c, errors.New("count must be a positive integer"))
		return
	}
	key := c.Param("key")
	removed, err := h.svc.RemoveCard(c.Request.Context(), key, n)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "removed": removed, "count": h.svc.Deck().Count(key)})
}

func (h *Handler) audit(c *gin.Context) {
	res, err := h.svc.Audit(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if res.HasBlocking() {
		status = http.StatusConflict
	}
	c.JSON(status, res)
}

func (h *Handler) save(c *gin.Context) {
	if err := h.svc.Save(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) forget(c *gin.Context) {
	existed, err := h.svc.Forget(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if !existed {
		h.fail(c, domain.ErrSnapshotNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) load(c *gin.Context) {
	if err := h.svc.Load(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.getDeck(c)
}
